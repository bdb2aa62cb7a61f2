package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trackline/internal/app"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/domain"
	"trackline/internal/migrate"
	"trackline/internal/repo"
	"trackline/internal/server"
	"trackline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Trackline CLI",
	Long: `Trackline is a workflow engine for issue tracking.
Core concepts:
- Workspace: your .trackline directory holding the database; org configs live in the DB and are imported explicitly.
- Organization: the tenant that owns statuses, workflows, projects, and issues.
- Statuses: named steps with a coarse category (TODO, IN_PROGRESS, DONE).
- Workflows: directed graphs of transitions between statuses; each org has one default, projects can bind their own.
- Transitions: the only way an issue changes status; each can carry validators that must pass first.
- Validators: checks like required_field or no_open_subtasks that gate a transition.
- History and audit: every executed transition leaves one history row and one audit entry; view with 'tl audit tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRACKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "user identifier")
	rootCmd.PersistentFlags().String("org", "", "organization id (overrides the single-org default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organizations"}
	org.AddCommand(orgInitCmd())
	org.AddCommand(orgListCmd())
	org.AddCommand(orgConfigCmd())
	return org
}

func orgInitCmd() *cobra.Command {
	var id, name, filePath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Provision an organization with its status catalog and default workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var cfg *config.Config
				if filePath != "" {
					loaded, err := config.FromFile(filePath)
					if err != nil {
						return err
					}
					cfg = loaded
					if id != "" {
						cfg.Organization.ID = id
					}
				} else {
					if id == "" {
						return fmt.Errorf("--id required")
					}
					cfg = config.Default(id)
				}
				if name != "" {
					cfg.Organization.Name = name
				}
				if err := app.EnsureOrganization(ctx, r, cfg); err != nil {
					return err
				}
				o, err := r.GetOrganization(ctx, cfg.Organization.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "organization id")
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	return cmd
}

func orgListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListOrganizations(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func orgConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage organization config",
	}
	cfg.AddCommand(orgConfigShowCmd())
	cfg.AddCommand(orgConfigImportCmd())
	return cfg
}

func orgConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show organization config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func orgConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import organization config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				target := cfg.Organization.ID
				if target == "" {
					target = orgID
				}
				if err := e.Repo.UpsertOrgConfig(ctx, target, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectBindWorkflowCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				if id == "" {
					id = uuid.New().String()
				}
				p := domain.Project{
					ID:        id,
					OrgID:     orgID,
					Name:      name,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertProject(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				items, err := e.Repo.ListProjects(ctx, orgID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectBindWorkflowCmd() *cobra.Command {
	var projectID, workflowID string
	cmd := &cobra.Command{
		Use:   "bind-workflow",
		Short: "Bind a workflow to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || workflowID == "" {
				return fmt.Errorf("--project and --workflow required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				if _, err := e.Repo.GetProject(ctx, orgID, projectID); err != nil {
					return err
				}
				wf, err := e.Repo.GetWorkflow(ctx, orgID, workflowID)
				if err != nil {
					return err
				}
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Repo.BindWorkflowToProject(ctx, tx, wf.ID, projectID); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id")
	return cmd
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{Use: "workflow", Short: "Manage workflows"}
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowShowCmd())
	wf.AddCommand(workflowResolveCmd())
	return wf
}

func workflowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				items, err := e.Repo.ListWorkflows(ctx, orgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Default", "Active"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.IsDefault, w.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func workflowShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow with its statuses and transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				wf, err := e.Repo.GetWorkflow(ctx, orgID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	return cmd
}

func workflowResolveCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the workflow governing a project's issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				wf, err := e.ResolveWorkflow(ctx, orgID, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func issueCmd() *cobra.Command {
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Manage issues",
		Long:  "Issues are the tracked work items. They only change status through workflow transitions; 'tl issue transitions' shows what is reachable and 'tl issue move' executes one.",
	}
	issue.AddCommand(issueCreateCmd())
	issue.AddCommand(issueListCmd())
	issue.AddCommand(issueShowCmd())
	issue.AddCommand(issueTransitionsCmd())
	issue.AddCommand(issueMoveCmd())
	issue.AddCommand(issueHistoryCmd())
	issue.AddCommand(issueDeleteCmd())
	return issue
}

func issueCreateCmd() *cobra.Command {
	var id, projectID, parentID, issueType, summary, statusID, assigneeID, priorityID, customFields string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || summary == "" {
				return fmt.Errorf("--project and --summary required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				if _, err := e.Repo.GetProject(ctx, orgID, projectID); err != nil {
					return err
				}
				if statusID == "" {
					wf, err := e.ResolveWorkflow(ctx, orgID, projectID)
					if err != nil {
						return err
					}
					if len(wf.Statuses) == 0 {
						return fmt.Errorf("workflow %s has no statuses", wf.ID)
					}
					statusID = wf.Statuses[0].StatusID
				}
				if id == "" {
					id = uuid.New().String()
				}
				if issueType == "" {
					issueType = "task"
				}
				if customFields != "" && !json.Valid([]byte(customFields)) {
					return fmt.Errorf("--custom-fields must be a JSON object")
				}
				now := time.Now().UTC().Format(time.RFC3339)
				issue := domain.Issue{
					ID:               id,
					OrgID:            orgID,
					ProjectID:        projectID,
					ParentID:         optionalString(parentID),
					Type:             issueType,
					Summary:          summary,
					StatusID:         statusID,
					AssigneeID:       optionalString(assigneeID),
					ReporterID:       optionalString(viper.GetString("user-id")),
					PriorityID:       optionalString(priorityID),
					CustomFieldsJSON: optionalString(customFields),
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				if err := e.Repo.InsertIssue(ctx, issue); err != nil {
					return err
				}
				created, err := e.Repo.GetIssue(ctx, orgID, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "issue id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent issue id")
	cmd.Flags().StringVar(&issueType, "type", "task", "issue type")
	cmd.Flags().StringVar(&summary, "summary", "", "summary")
	cmd.Flags().StringVar(&statusID, "status", "", "initial status id (defaults to the workflow's first status)")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&priorityID, "priority-id", "", "priority id")
	cmd.Flags().StringVar(&customFields, "custom-fields", "", "custom fields JSON object")
	return cmd
}

func issueListCmd() *cobra.Command {
	var projectID, statusID, parentID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				items, err := e.Repo.ListIssues(ctx, repo.IssueFilters{
					OrgID:     orgID,
					ProjectID: projectID,
					StatusID:  statusID,
					ParentID:  parentID,
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Summary", "Status", "Assignee", "Project"})
				for _, i := range items {
					assignee := ""
					if i.AssigneeID != nil {
						assignee = *i.AssigneeID
					}
					statusName := i.StatusID
					if i.Status != nil {
						statusName = i.Status.Name
					}
					tw.AppendRow(table.Row{i.ID, i.Summary, statusName, assignee, i.ProjectID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id filter")
	cmd.Flags().StringVar(&statusID, "status", "", "status id filter")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent issue id filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max issues to return")
	return cmd
}

func issueShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				issue, err := e.Repo.GetIssue(ctx, orgID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	return cmd
}

func issueTransitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transitions <id>",
		Short: "List transitions available from the issue's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("issue id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				items, err := e.AvailableTransitions(ctx, orgID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "To Status", "Category"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.ToStatus.Name, t.ToStatus.Category})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func issueMoveCmd() *cobra.Command {
	var transitionID string
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Execute a workflow transition on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if transitionID == "" {
				return fmt.Errorf("--transition required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				issue, err := e.TransitionIssue(ctx, orgID, viper.GetString("user-id"), args[0], transitionID)
				if err != nil {
					var ve *workflow.ValidationError
					if errors.As(err, &ve) {
						return fmt.Errorf("%s: %s", ve.Code, ve.Message)
					}
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().StringVar(&transitionID, "transition", "", "transition id")
	return cmd
}

func issueHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show an issue's change history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				if _, err := e.Repo.GetIssue(ctx, orgID, args[0]); err != nil {
					return err
				}
				items, err := e.Repo.ListIssueHistory(ctx, orgID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func issueDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				return e.Repo.SoftDeleteIssue(ctx, orgID, args[0], now)
			})
		},
	}
	return cmd
}

func auditCmd() *cobra.Command {
	audit := &cobra.Command{Use: "audit", Short: "Inspect the audit log"}
	audit.AddCommand(auditTailCmd())
	return audit
}

func auditTailCmd() *cobra.Command {
	var n int
	var entityType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, orgID string, e workflow.Engine) error {
				entries, err := e.Repo.LatestAudit(ctx, n, orgID, entityType, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	apikey.AddCommand(apikeyCreateCmd())
	return apikey
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.New().String()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					UserID:    viper.GetString("user-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				// Shown once; only the hash is stored.
				return printJSONOrTable(map[string]string{
					"id":      key.ID,
					"user_id": key.UserID,
					"name":    key.Name,
					"secret":  secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveOrgAndConfig(cmd.Context(), viper.GetString("org"), r)
			if err != nil {
				return err
			}
			e := workflow.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("TRACKLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TRACKLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(cmd.Context(), server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Trackline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, string, workflow.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	orgID, cfg, err := app.ResolveOrgAndConfig(ctx, viper.GetString("org"), r)
	if err != nil {
		return err
	}
	e := workflow.New(conn, cfg)
	return fn(ctx, orgID, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
