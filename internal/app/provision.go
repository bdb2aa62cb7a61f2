package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/repo"
)

// ResolveOrgAndConfig picks the active organization and ensures an org plus
// config exist in the DB, seeding defaults when missing. It prefers the
// override, then the single org in the store. If the organization does not
// exist it is provisioned on the fly, default workflow included.
func ResolveOrgAndConfig(ctx context.Context, orgOverride string, r repo.Repo) (string, *config.Config, error) {
	orgID := orgOverride
	if orgID == "" {
		if o, err := r.SingleOrganization(ctx); err == nil {
			orgID = o.ID
		} else {
			return "", nil, fmt.Errorf("organization not specified; use --org")
		}
	}
	seedCfg := config.Default(orgID)

	if _, err := r.GetOrganization(ctx, orgID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := EnsureOrganization(ctx, r, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetOrgConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertOrgConfig(ctx, orgID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed org config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Organization.ID = orgID
	return orgID, cfg, nil
}

// EnsureOrganization provisions an organization from cfg: the org row, its
// status catalog, and the default workflow with its transitions, all in one
// transaction. Every organization leaves here with exactly one default
// workflow, which is what transition resolution falls back on.
func EnsureOrganization(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	orgID := cfg.Organization.ID
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO organizations(id,name,created_at) VALUES (?,?,?)`,
		orgID, orgName(cfg), now); err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	for _, s := range cfg.Statuses {
		if err := r.InsertStatusTx(ctx, tx, domain.Status{
			ID:       s.ID,
			OrgID:    orgID,
			Name:     s.Name,
			Category: domain.StatusCategory(s.Category),
		}); err != nil {
			return fmt.Errorf("insert status %s: %w", s.ID, err)
		}
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM workflows WHERE org_id=? AND is_default=1`, orgID).Scan(&existing); err != nil {
		return err
	}
	if existing == 0 {
		wf, err := workflowFromSeed(orgID, cfg, now)
		if err != nil {
			return err
		}
		if err := r.InsertWorkflowTx(ctx, tx, wf); err != nil {
			return fmt.Errorf("insert default workflow: %w", err)
		}
	}
	if err := r.UpsertOrgConfigTx(ctx, tx, orgID, cfg); err != nil {
		return fmt.Errorf("upsert org config: %w", err)
	}
	return tx.Commit()
}

// CreateWorkflow builds a non-default workflow from a seed and optionally
// binds it to projects.
func CreateWorkflow(ctx context.Context, r repo.Repo, orgID string, seed config.WorkflowSeed, statusIDs []string, projectIDs []string) (domain.Workflow, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	wf, err := assembleWorkflow(orgID, seed, statusIDs, now)
	if err != nil {
		return domain.Workflow{}, err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workflow{}, err
	}
	defer tx.Rollback()
	if err := r.InsertWorkflowTx(ctx, tx, wf); err != nil {
		return domain.Workflow{}, err
	}
	for _, pid := range projectIDs {
		if err := r.BindWorkflowToProject(ctx, tx, wf.ID, pid); err != nil {
			return domain.Workflow{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Workflow{}, err
	}
	return r.GetWorkflow(ctx, orgID, wf.ID)
}

func workflowFromSeed(orgID string, cfg *config.Config, now string) (domain.Workflow, error) {
	ids := make([]string, 0, len(cfg.Statuses))
	for _, s := range cfg.Statuses {
		ids = append(ids, s.ID)
	}
	wf, err := assembleWorkflow(orgID, cfg.Workflow, ids, now)
	if err != nil {
		return domain.Workflow{}, err
	}
	wf.IsDefault = true
	return wf, nil
}

func assembleWorkflow(orgID string, seed config.WorkflowSeed, statusIDs []string, now string) (domain.Workflow, error) {
	wf := domain.Workflow{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Name:      seed.Name,
		IsActive:  true,
		CreatedAt: now,
	}
	for i, id := range statusIDs {
		wf.Statuses = append(wf.Statuses, domain.WorkflowStatus{StatusID: id, Position: i})
	}
	for _, t := range seed.Transitions {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		tr := domain.Transition{
			ID:           id,
			WorkflowID:   wf.ID,
			Name:         t.Name,
			FromStatusID: t.From,
			ToStatusID:   t.To,
		}
		if len(t.Validators) > 0 {
			b, err := json.Marshal(t.Validators)
			if err != nil {
				return domain.Workflow{}, fmt.Errorf("marshal validators for transition %s: %w", t.Name, err)
			}
			s := string(b)
			tr.ValidatorsJSON = &s
		}
		wf.Transitions = append(wf.Transitions, tr)
	}
	return wf, nil
}

func orgName(cfg *config.Config) string {
	if cfg.Organization.Name != "" {
		return cfg.Organization.Name
	}
	return cfg.Organization.ID
}
