package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"deploy"}},
		{name: "classifier without model dir", args: []string{"classifier", "--run-id", "abc"}},
		{name: "knn without vectors", args: []string{"knn", "--k", "5"}},
		{name: "unknown flag", args: []string{"classifier", "--model", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{})
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"help"}, &out)

	assert.NoError(t, err)
	assert.Contains(t, out.String(), "classifier")
	assert.Contains(t, out.String(), "knn")
}

func TestRun_SubcommandHelp(t *testing.T) {
	err := run(context.Background(), []string{"knn", "--help"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errHelp)
}
