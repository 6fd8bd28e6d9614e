package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ObjectURL addresses an object in S3-compatible storage
type ObjectURL struct {
	Bucket string
	Key    string
}

// ParseObjectURL parses s3://bucket/key. The key must be non-empty.
func ParseObjectURL(raw string) (ObjectURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ObjectURL{}, fmt.Errorf("%w: %v", ErrInvalidObjectURL, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return ObjectURL{}, ErrInvalidObjectURL
	}
	key := strings.Trim(u.Path, "/")
	if key == "" {
		return ObjectURL{}, ErrInvalidObjectURL
	}
	return ObjectURL{Bucket: u.Host, Key: key}, nil
}

// String renders the s3:// form
func (o ObjectURL) String() string {
	if o.Key == "" {
		return "s3://" + o.Bucket
	}
	return "s3://" + o.Bucket + "/" + o.Key
}

// Parent is the "directory" holding the object: the key with its last
// segment removed, or the bare bucket for top-level objects.
func (o ObjectURL) Parent() ObjectURL {
	dir := path.Dir(o.Key)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return ObjectURL{Bucket: o.Bucket, Key: dir}
}

// JoinKey joins a key prefix and a name, ignoring an empty prefix
func JoinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
