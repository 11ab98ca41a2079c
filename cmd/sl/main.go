package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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

	"safeline/internal/advisory"
	"safeline/internal/config"
	"safeline/internal/db"
	"safeline/internal/domain"
	"safeline/internal/engine"
	"safeline/internal/migrate"
	"safeline/internal/repo"
	"safeline/internal/server"
	"safeline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Safeline CLI",
	Long: `Safeline tracks behavioral-safety observations through a role-gated lifecycle.
An observation is reported (open), reviewed by a supervisor (approved with
corrective actions, or reassigned back to the observer), worked by assignees,
and finally closed or rejected by safety leadership. Every transition is
checked against the caller's role and site scope and recorded in the event log.`,
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
	viper.SetEnvPrefix("SAFELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(obsCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func obsCmd() *cobra.Command {
	obs := &cobra.Command{
		Use:   "obs",
		Short: "Manage observations",
		Long:  "Observations flow open -> approved -> pending_closure -> closed, with reassigned as the rework branch. Review assigns corrective actions; closure is decided by safety leadership.",
	}
	obs.AddCommand(obsCreateCmd())
	obs.AddCommand(obsListCmd())
	obs.AddCommand(obsGetCmd())
	obs.AddCommand(obsReviewCmd())
	obs.AddCommand(obsCloseCmd())
	obs.AddCommand(obsEditCmd())
	obs.AddCommand(obsResubmitCmd())
	return obs
}

func obsCreateCmd() *cobra.Command {
	var obsType, severity, description, plantID, areaID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Report an observation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveCLIActor(ctx, e)
				if err != nil {
					return err
				}
				o, err := e.CreateObservation(ctx, actor, engine.CreateOptions{
					ObservationType: domain.ObservationType(obsType),
					Severity:        domain.Severity(severity),
					Description:     description,
					PlantID:         plantID,
					AreaID:          areaID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&obsType, "type", "", "observation type (unsafe_act, unsafe_condition, safe_behavior)")
	cmd.Flags().StringVar(&severity, "severity", "", "severity (low, medium, high, critical)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&plantID, "plant", "", "plant id (defaults to the actor's plant)")
	cmd.Flags().StringVar(&areaID, "area", "", "area id")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func obsListCmd() *cobra.Command {
	var f repo.ObservationFilters
	var mine bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveCLIActor(ctx, e)
				if err != nil {
					return err
				}
				if actor.Role != domain.RoleCompanyOwner {
					f.CompanyID = actor.CompanyID
				}
				if mine {
					f.Observer = actor.ID
				}
				if f.Limit <= 0 {
					f.Limit = 50
				}
				items, err := e.Repo.ListObservations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Report", "Type", "Severity", "Status", "Observer", "Plant", "Actions"})
				for _, o := range items {
					tw.AppendRow(table.Row{
						o.ReportNumber, o.ObservationType, o.Severity, o.Status,
						o.Observer, o.PlantID, len(o.CorrectiveActions),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.PlantID, "plant", "", "plant filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	cmd.Flags().BoolVar(&mine, "mine", false, "only observations reported by this actor")
	return cmd
}

func obsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.GetObservation(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func obsReviewCmd() *cobra.Command {
	var decision, comments, reason string
	var actionSpecs []string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Review an open observation",
		Long:  "Approve with corrective actions (repeatable --action \"desc|assignee|due|priority\") or reassign back to the observer with --reason.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := parseActionSpecs(actionSpecs)
			if err != nil {
				return err
			}
			intent := workflow.ReviewIntent{
				Decision:       decision,
				Comments:       comments,
				ReassignReason: reason,
				Actions:        actions,
			}
			return submitCLIIntent(cmd.Context(), args[0], intent)
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "approve or reassign")
	cmd.Flags().StringVar(&comments, "comments", "", "review comments")
	cmd.Flags().StringVar(&reason, "reason", "", "reassign reason")
	cmd.Flags().StringArrayVar(&actionSpecs, "action", []string{}, "corrective action as desc|assignee|due-date|priority")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func obsCloseCmd() *cobra.Command {
	var decision, comments string
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Decide closure of a pending observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitCLIIntent(cmd.Context(), args[0], workflow.ClosureIntent{
				Decision: decision,
				Comments: comments,
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "approve", "approve or reject")
	cmd.Flags().StringVar(&comments, "comments", "", "closure comments")
	return cmd
}

func obsEditCmd() *cobra.Command {
	var severity, description, area string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit observation fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := workflow.EditIntent{}
			if cmd.Flags().Changed("severity") {
				sev := domain.Severity(severity)
				intent.Severity = &sev
			}
			if cmd.Flags().Changed("description") {
				intent.Description = &description
			}
			if cmd.Flags().Changed("area") {
				intent.AreaID = &area
			}
			return submitCLIIntent(cmd.Context(), args[0], intent)
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "new severity (open observations only)")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&area, "area", "", "new area id")
	return cmd
}

func obsResubmitCmd() *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Resubmit a reassigned observation for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitCLIIntent(cmd.Context(), args[0], workflow.ResubmitIntent{Comments: comments})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "rework summary")
	return cmd
}

func actionCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "action",
		Short: "Work corrective actions",
		Long:  "Corrective actions are assigned at review and worked by their assignee: pending -> in_progress -> completed. When the last one completes, the observation moves to pending_closure.",
	}
	act.AddCommand(actionStartCmd())
	act.AddCommand(actionCompleteCmd())
	return act
}

func actionStartCmd() *cobra.Command {
	var obsID string
	cmd := &cobra.Command{
		Use:   "start <action-id>",
		Short: "Start an assigned action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitCLIIntent(cmd.Context(), obsID, workflow.ActionStartIntent{ActionID: args[0]})
		},
	}
	cmd.Flags().StringVar(&obsID, "obs", "", "observation id")
	_ = cmd.MarkFlagRequired("obs")
	return cmd
}

func actionCompleteCmd() *cobra.Command {
	var obsID, evidence string
	var photos []string
	var rating int
	cmd := &cobra.Command{
		Use:   "complete <action-id>",
		Short: "Complete an assigned action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := workflow.ActionCompleteIntent{
				ActionID:           args[0],
				CompletionEvidence: evidence,
				EvidencePhotos:     photos,
			}
			if cmd.Flags().Changed("rating") {
				intent.EffectivenessRating = &rating
			}
			return submitCLIIntent(cmd.Context(), obsID, intent)
		},
	}
	cmd.Flags().StringVar(&obsID, "obs", "", "observation id")
	cmd.Flags().StringVar(&evidence, "evidence", "", "completion evidence")
	cmd.Flags().StringArrayVar(&photos, "photo", []string{}, "evidence photo reference (repeatable)")
	cmd.Flags().IntVar(&rating, "rating", 0, "effectiveness rating 1-5")
	_ = cmd.MarkFlagRequired("obs")
	return cmd
}

func actorCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "actor",
		Short: "Manage the actor directory",
	}
	a.AddCommand(actorAddCmd())
	a.AddCommand(actorListCmd())
	return a
}

// actorAddCmd writes the directory entry directly, without authorization
// checks. It exists to bootstrap the first company_owner in a fresh
// workspace; registered managers should use the API instead.
func actorAddCmd() *cobra.Command {
	var id, name, role, companyID, plantID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update an actor (bootstrap, no authorization checks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a := domain.Actor{
					ID:        id,
					Name:      name,
					Role:      domain.Role(role),
					CompanyID: companyID,
					PlantID:   plantID,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.UpsertActor(ctx, a); err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "role (company_owner, plant_head, safety_incharge, hod, worker, contractor)")
	cmd.Flags().StringVar(&companyID, "company", "", "company id")
	cmd.Flags().StringVar(&plantID, "plant", "", "plant id")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func actorListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actors, err := r.ListActors(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(actors)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Company", "Plant"})
				for _, a := range actors {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Role, a.CompanyID, a.PlantID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyRevokeCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actorID := viper.GetString("actor-id")
				if _, err := r.GetActor(ctx, actorID); err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return fmt.Errorf("actor %s is not registered; run 'sl actor add' first", actorID)
					}
					return err
				}
				secret, err := generateAPIKey()
				if err != nil {
					return err
				}
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "key": secret})
				}
				fmt.Printf("API key %s created. Store the secret now; it is not shown again:\n%s\n", key.ID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Observation counts by lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveCLIActor(ctx, e)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountObservationsByStatus(ctx, actor.CompanyID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				fmt.Println("Observations:")
				for _, status := range []domain.Status{
					domain.StatusOpen, domain.StatusApproved, domain.StatusPendingClosure,
					domain.StatusClosed, domain.StatusReassigned,
				} {
					fmt.Printf("  %s: %d\n", status, counts[string(status)])
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
		Long:  "Config is the site rulebook (safeline.yml): company identity, plants and areas, webhooks, and the advisory endpoint.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var companyID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default safeline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(companyID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "acme", "company id")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
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
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("SAFELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SAFELINE_JWT_SECRET is required for bearer auth")
			}
			var advisor advisory.Advisor = advisory.Noop{}
			if cfg != nil {
				advisor = advisory.FromConfig(cfg.Advisory)
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     authCfg,
				Advisor:  advisor,
			})
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
			fmt.Printf("Serving Safeline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
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

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
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
	return fn(ctx, repo.Repo{DB: conn})
}

func resolveCLIActor(ctx context.Context, e *engine.Engine) (domain.Actor, error) {
	actorID := viper.GetString("actor-id")
	actor, err := e.Repo.GetActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Actor{}, fmt.Errorf("actor %s is not registered; run 'sl actor add' first", actorID)
		}
		return domain.Actor{}, err
	}
	return actor, nil
}

func submitCLIIntent(ctx context.Context, observationID string, intent workflow.Intent) error {
	if observationID == "" {
		return fmt.Errorf("observation id is required")
	}
	return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
		actor, err := resolveCLIActor(ctx, e)
		if err != nil {
			return err
		}
		o, err := e.SubmitIntent(ctx, actor, observationID, intent)
		if err != nil {
			return err
		}
		return printJSONOrTable(o)
	})
}

// parseActionSpecs parses repeatable --action values of the form
// "description|assignee|due-date|priority"; the trailing parts are optional.
func parseActionSpecs(specs []string) ([]workflow.ActionSpec, error) {
	out := make([]workflow.ActionSpec, 0, len(specs))
	for _, raw := range specs {
		parts := strings.SplitN(raw, "|", 4)
		spec := workflow.ActionSpec{Action: strings.TrimSpace(parts[0])}
		if spec.Action == "" {
			return nil, fmt.Errorf("action description is required in %q", raw)
		}
		if len(parts) > 1 {
			spec.AssignedTo = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			spec.DueDate = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			spec.Priority = domain.Severity(strings.TrimSpace(parts[3]))
		}
		out = append(out, spec)
	}
	return out, nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "slk_" + hex.EncodeToString(buf), nil
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
