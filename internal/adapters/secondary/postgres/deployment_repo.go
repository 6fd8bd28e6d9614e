package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

// DB is the subset of pgxpool.Pool the repository needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var sortableColumns = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"kind":          true,
	"status":        true,
	"endpoint_name": true,
}

const deploymentColumns = `
	id, created_at, updated_at, kind, run_id, platform, endpoint_name,
	model_data_url, training_job_name, status, last_error, labels`

type deploymentRepo struct {
	db DB
}

// NewDeploymentRepository creates a new DeploymentRepository
func NewDeploymentRepository(db DB) output.DeploymentRepository {
	return &deploymentRepo{db: db}
}

func (r *deploymentRepo) Create(ctx context.Context, d *domain.Deployment) error {
	labelsJSON, err := json.Marshal(d.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		INSERT INTO deployment
			(id, created_at, updated_at, kind, run_id, platform, endpoint_name,
			 model_data_url, training_job_name, status, last_error, labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Exec(ctx, query,
		d.ID, d.CreatedAt, d.UpdatedAt,
		string(d.Kind), d.RunID, d.Platform, d.EndpointName,
		d.ModelDataURL, d.TrainingJobName,
		string(d.Status), d.LastError, labelsJSON,
	)
	if err != nil {
		return fmt.Errorf("create deployment: %w", err)
	}
	return nil
}

func (r *deploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	labelsJSON, err := json.Marshal(d.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		UPDATE deployment
		SET endpoint_name = $1, model_data_url = $2, training_job_name = $3,
			status = $4, last_error = $5, labels = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.Exec(ctx, query,
		d.EndpointName, d.ModelDataURL, d.TrainingJobName,
		string(d.Status), d.LastError, labelsJSON, d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrDeploymentNotFound
	}
	return nil
}

func (r *deploymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployment WHERE id = $1`

	d, err := scanDeployment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("get deployment by id: %w", err)
	}
	return d, nil
}

func (r *deploymentRepo) List(ctx context.Context, filter output.DeploymentFilter) ([]*domain.Deployment, int, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, filter.Kind)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM deployment WHERE %s`, whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deployments: %w", err)
	}

	// Order
	orderBy := "created_at DESC"
	if sortableColumns[filter.SortBy] {
		dir := "DESC"
		if filter.Order == "asc" {
			dir = "ASC"
		}
		orderBy = fmt.Sprintf("%s %s", filter.SortBy, dir)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM deployment
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, deploymentColumns, whereClause, orderBy, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan deployment row: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate deployment rows: %w", err)
	}

	return deployments, total, nil
}

func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	d := &domain.Deployment{}
	var labelsJSON []byte
	var kind, status string

	err := row.Scan(
		&d.ID, &d.CreatedAt, &d.UpdatedAt,
		&kind, &d.RunID, &d.Platform, &d.EndpointName,
		&d.ModelDataURL, &d.TrainingJobName,
		&status, &d.LastError, &labelsJSON,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = domain.DeploymentKind(kind)
	d.Status = domain.DeploymentStatus(status)

	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &d.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	if d.Labels == nil {
		d.Labels = make(map[string]string)
	}

	return d, nil
}

// Ensure interface compliance
var _ output.DeploymentRepository = (*deploymentRepo)(nil)
