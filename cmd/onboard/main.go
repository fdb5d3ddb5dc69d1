package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"onboard/internal/config"
	"onboard/internal/db"
	"onboard/internal/directory"
	"onboard/internal/domain"
	"onboard/internal/engine"
	"onboard/internal/files"
	"onboard/internal/lookup"
	"onboard/internal/migrate"
	"onboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard CLI",
	Long: `Onboard runs the employee-onboarding services and administers their data.
Concepts:
- Workspace: the .onboard directory holding the database and uploaded documents.
- Users: the directory of admins, managers and employees behind /api/auth.
- Workflows: reusable ordered checklists with an allotted duration.
- Onboardings: one employee's run of a workflow; tasks are reviewed one by
  one until progress hits 100.
- Completion review: the final accept/reject gate once the employee declares
  the project complete.
- Notifications: per-user messages written alongside every state change.`,
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
	viper.SetEnvPrefix("ONBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(onboardingCmd())
	rootCmd.AddCommand(notificationCmd())
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}

func openWorkspace() (func() error, engine.Engine, directory.Directory, error) {
	workspace := viper.GetString("workspace")
	log := newLogger()
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, engine.Engine{}, directory.Directory{}, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, directory.Directory{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, directory.Directory{}, err
	}
	return conn.Close, engine.New(conn, cfg, log), directory.New(conn, cfg, log), nil
}

func withEngine(fn func(ctx context.Context, e engine.Engine) error) error {
	closeDB, e, _, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(context.Background(), e)
}

func withDirectory(fn func(ctx context.Context, d directory.Directory) error) error {
	closeDB, _, d, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(context.Background(), d)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the enabled HTTP services",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			log := newLogger()
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
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
			uploadsDir, err := db.UploadsDir(workspace)
			if err != nil {
				return err
			}

			e := engine.New(conn, cfg, log)
			if cfg.Peers.AuthURL != "" || cfg.Peers.WorkflowURL != "" {
				e.Resolve = lookup.HTTPResolver{
					AuthURL:     cfg.Peers.AuthURL,
					WorkflowURL: cfg.Peers.WorkflowURL,
					Log:         log,
				}
			}
			d := directory.New(conn, cfg, log)
			auth := server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret}

			type service struct {
				name    string
				addr    string
				handler http.Handler
			}
			var services []service
			if cfg.Services.Auth.Enabled {
				services = append(services, service{"auth", cfg.Services.Auth.Addr,
					server.NewAuthService(d, auth, log)})
			}
			if cfg.Services.Workflows.Enabled {
				services = append(services, service{"workflows", cfg.Services.Workflows.Addr,
					server.NewWorkflowService(e, auth, log)})
			}
			if cfg.Services.Onboarding.Enabled {
				services = append(services, service{"onboarding", cfg.Services.Onboarding.Addr,
					server.NewOnboardingService(server.OnboardingConfig{
						Engine:   e,
						Store:    files.Store{Dir: uploadsDir},
						MaxFiles: cfg.Uploads.MaxFiles,
						Auth:     auth,
						Log:      log,
					})})
			}
			if len(services) == 0 {
				return fmt.Errorf("no services enabled in %s", config.Path(workspace))
			}

			errc := make(chan error, len(services))
			var servers []*http.Server
			for _, svc := range services {
				srv := &http.Server{Addr: svc.addr, Handler: svc.handler}
				servers = append(servers, srv)
				log.Info().Str("service", svc.name).Str("addr", svc.addr).Msg("listening")
				go func(s *http.Server, name string) {
					if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errc <- fmt.Errorf("%s: %w", name, err)
					}
				}(srv, svc.name)
			}

			select {
			case <-cmd.Context().Done():
			case err := <-errc:
				return err
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, srv := range servers {
				srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default onboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage the user directory"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userSetManagerCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email, password, role, managerID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(func(ctx context.Context, d directory.Directory) error {
				u, err := d.Register(ctx, directory.RegisterOptions{
					Name:      name,
					Email:     email,
					Password:  password,
					Role:      role,
					ManagerID: managerID,
				})
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", domain.RoleEmployee, "role (ADMIN, MANAGER, EMPLOYEE)")
	cmd.Flags().StringVar(&managerID, "manager-id", "", "manager user id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(func(ctx context.Context, d directory.Directory) error {
				users, err := d.ListUsers(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Manager", "Joined"})
				for _, u := range users {
					manager := ""
					if u.ManagerID != nil {
						manager = *u.ManagerID
					}
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, manager, u.DateOfJoining})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func userSetManagerCmd() *cobra.Command {
	var managerID string
	var clear bool
	cmd := &cobra.Command{
		Use:   "set-manager <user-id>",
		Short: "Set or clear a user's manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(func(ctx context.Context, d directory.Directory) error {
				opts := directory.UpdateUserOptions{ManagerSet: true}
				if !clear {
					if managerID == "" {
						return fmt.Errorf("--manager-id or --clear required")
					}
					opts.ManagerID = &managerID
				}
				u, err := d.UpdateUser(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&managerID, "manager-id", "", "manager user id")
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the manager")
	return cmd
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{Use: "workflow", Short: "Manage workflow templates"}
	wf.AddCommand(workflowCreateCmd())
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowShowCmd())
	return wf
}

// parseStep reads "title:role" or "title:role:durationDays".
func parseStep(raw string) (domain.Step, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.Step{}, fmt.Errorf("step %q must be title:role or title:role:days", raw)
	}
	step := domain.Step{Title: parts[0], AssignedRole: parts[1]}
	if len(parts) == 3 {
		days, err := strconv.Atoi(parts[2])
		if err != nil {
			return domain.Step{}, fmt.Errorf("step %q has a non-numeric duration", raw)
		}
		step.StepDurationDays = days
	}
	return step, nil
}

func workflowCreateCmd() *cobra.Command {
	var name, description, createdBy string
	var allotted int
	var rawSteps []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				var steps []domain.Step
				for _, raw := range rawSteps {
					step, err := parseStep(raw)
					if err != nil {
						return err
					}
					steps = append(steps, step)
				}
				wf, err := e.CreateTemplate(ctx, engine.TemplateOptions{
					Name:             name,
					Description:      description,
					Steps:            steps,
					AllottedTimeDays: allotted,
					CreatedBy:        createdBy,
				})
				if err != nil {
					return err
				}
				return printJSON(wf)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&rawSteps, "step", nil, "step as title:role or title:role:days (repeatable)")
	cmd.Flags().IntVar(&allotted, "allotted-days", 0, "total allotted days (0 = no deadline)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "creating admin id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}

func workflowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTemplates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Steps", "Allotted Days", "Created"})
				for _, wf := range items {
					tw.AppendRow(table.Row{wf.ID, wf.Name, len(wf.Steps), wf.AllottedTimeDays, wf.CreatedAt})
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
		Short: "Show a workflow template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				wf, err := e.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(wf)
			})
		},
	}
	return cmd
}

func onboardingCmd() *cobra.Command {
	ob := &cobra.Command{Use: "onboarding", Short: "Manage onboarding instances"}
	ob.AddCommand(onboardingAssignCmd())
	ob.AddCommand(onboardingListCmd())
	ob.AddCommand(onboardingShowCmd())
	ob.AddCommand(onboardingReviewCmd())
	ob.AddCommand(onboardingCompleteReviewCmd())
	return ob
}

func onboardingAssignCmd() *cobra.Command {
	var employeeID, workflowID, assignedBy, managerID string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a workflow to an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				wf, err := e.GetTemplate(ctx, workflowID)
				if err != nil {
					return err
				}
				inst, err := e.AssignWorkflow(ctx, engine.AssignOptions{
					EmployeeID: employeeID,
					Template:   wf,
					AssignedBy: assignedBy,
					ManagerID:  managerID,
				})
				if err != nil {
					return err
				}
				return printJSON(inst)
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee-id", "", "employee user id")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow template id")
	cmd.Flags().StringVar(&assignedBy, "assigned-by", "", "assigning admin id")
	cmd.Flags().StringVar(&managerID, "manager-id", "", "manager user id")
	_ = cmd.MarkFlagRequired("employee-id")
	_ = cmd.MarkFlagRequired("workflow-id")
	_ = cmd.MarkFlagRequired("assigned-by")
	return cmd
}

func onboardingListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every onboarding with resolved names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAllInstances(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Employee", "Workflow", "Progress", "Status", "Project", "Days Left"})
				for _, inst := range items {
					daysLeft := ""
					if inst.DaysLeft != nil {
						daysLeft = strconv.Itoa(*inst.DaysLeft)
					}
					tw.AppendRow(table.Row{
						inst.ID, inst.Employee.Name, inst.Workflow.Name,
						inst.Progress, inst.Status, inst.ProjectStatus, daysLeft,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func onboardingShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one onboarding instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				inst, err := e.Repo.GetInstance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(inst)
			})
		},
	}
	return cmd
}

func onboardingReviewCmd() *cobra.Command {
	var stepOrder int
	var action, comment, reviewerID, reviewerRole string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				inst, err := e.ReviewTask(ctx, engine.TaskReviewOptions{
					InstanceID:   args[0],
					StepOrder:    stepOrder,
					Action:       action,
					Comment:      comment,
					ReviewerID:   reviewerID,
					ReviewerRole: reviewerRole,
				})
				if err != nil {
					return err
				}
				return printJSON(inst)
			})
		},
	}
	cmd.Flags().IntVar(&stepOrder, "step", 0, "step order")
	cmd.Flags().StringVar(&action, "action", "approve", "approve or reject")
	cmd.Flags().StringVar(&comment, "comment", "", "reviewer comment")
	cmd.Flags().StringVar(&reviewerID, "reviewer-id", "", "reviewer user id")
	cmd.Flags().StringVar(&reviewerRole, "reviewer-role", "", "reviewer role (admin, manager, employee)")
	_ = cmd.MarkFlagRequired("step")
	_ = cmd.MarkFlagRequired("reviewer-id")
	_ = cmd.MarkFlagRequired("reviewer-role")
	return cmd
}

func onboardingCompleteReviewCmd() *cobra.Command {
	var action, remark, reviewerID, reviewerRole string
	cmd := &cobra.Command{
		Use:   "complete-review <id>",
		Short: "Accept or reject a declared completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				inst, err := e.ReviewCompletion(ctx, engine.CompletionReviewOptions{
					InstanceID:   args[0],
					ReviewerID:   reviewerID,
					ReviewerRole: reviewerRole,
					Action:       action,
					Remark:       remark,
				})
				if err != nil {
					return err
				}
				return printJSON(inst)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "accept", "accept or reject")
	cmd.Flags().StringVar(&remark, "remark", "", "review remark")
	cmd.Flags().StringVar(&reviewerID, "reviewer-id", "", "reviewer user id")
	cmd.Flags().StringVar(&reviewerRole, "reviewer-role", "", "reviewer role (ADMIN or MANAGER)")
	_ = cmd.MarkFlagRequired("reviewer-id")
	_ = cmd.MarkFlagRequired("reviewer-role")
	return cmd
}

func notificationCmd() *cobra.Command {
	n := &cobra.Command{Use: "notification", Short: "Inspect notifications"}
	n.AddCommand(notificationListCmd())
	n.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				return e.MarkNotificationRead(ctx, args[0])
			})
		},
	})
	return n
}

func notificationListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListNotifications(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Message", "Read", "Created"})
				for _, item := range items {
					tw.AppendRow(table.Row{item.ID, item.Message, item.IsRead, item.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
