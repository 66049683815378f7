package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthportal/portal/internal/domain/identity"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/hipaa"
	"github.com/healthportal/portal/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS)
			var count int
			if to > 0 {
				count, err = migrator.UpTo(ctx, to)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this migration version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

// withServices connects, builds the domain services and runs fn. Admin
// commands never issue tokens, so no token service is wired.
func withServices(fn func(ctx context.Context, svc *services) error) error {
	ctx := context.Background()
	cfg, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildServices(cfg, pool, nil)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

// providerCmd manages care-team accounts. Providers cannot self-register.
func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage provider accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a provider account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")

			return withServices(func(ctx context.Context, svc *services) error {
				acct, err := svc.identity.CreateProvider(ctx, email, password, firstName, lastName)
				if err != nil {
					return fmt.Errorf("create provider: %w", err)
				}
				fmt.Printf("Created provider %s (%s)\n", acct.Email, acct.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("email", "", "Provider login email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")
	for _, f := range []string{"email", "password", "first-name", "last-name"} {
		_ = createCmd.MarkFlagRequired(f)
	}
	cmd.AddCommand(createCmd)

	return cmd
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage patient assignments",
	}

	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a patient to a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientEmail, _ := cmd.Flags().GetString("patient")
			providerEmail, _ := cmd.Flags().GetString("provider")

			return withServices(func(ctx context.Context, svc *services) error {
				patient, err := findAccount(ctx, svc.identity, patientEmail, auth.RolePatient)
				if err != nil {
					return err
				}
				provider, err := findAccount(ctx, svc.identity, providerEmail, auth.RoleProvider)
				if err != nil {
					return err
				}
				if err := svc.portal.AssignProvider(ctx, patient.ID, provider.ID); err != nil {
					return fmt.Errorf("assign provider: %w", err)
				}
				fmt.Printf("Assigned %s to %s\n", patient.Email, provider.Email)
				return nil
			})
		},
	}
	assignCmd.Flags().String("patient", "", "Patient email")
	assignCmd.Flags().String("provider", "", "Provider email")
	_ = assignCmd.MarkFlagRequired("patient")
	_ = assignCmd.MarkFlagRequired("provider")
	cmd.AddCommand(assignCmd)

	return cmd
}

func findAccount(ctx context.Context, svc *identity.Service, email string, role auth.Role) (*identity.Account, error) {
	acct, err := svc.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", email, err)
	}
	if acct.Role != role {
		return nil, fmt.Errorf("%s is a %s, not a %s", email, acct.Role, role)
	}
	return acct, nil
}

// accountCmd toggles whether an account may sign in. A running server
// notices the change once its validity cache entry expires.
func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Activate or deactivate accounts",
	}

	toggle := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " EMAIL",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(func(ctx context.Context, svc *services) error {
					acct, err := svc.identity.FindByEmail(ctx, args[0])
					if err != nil {
						return fmt.Errorf("look up %s: %w", args[0], err)
					}
					if active {
						err = svc.identity.Reactivate(ctx, acct.ID)
					} else {
						err = svc.identity.Deactivate(ctx, acct.ID)
					}
					if err != nil {
						return fmt.Errorf("%s %s: %w", use, acct.Email, err)
					}
					state := "inactive"
					if active {
						state = "active"
					}
					fmt.Printf("Account %s is now %s\n", acct.Email, state)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(toggle("deactivate", "Block an account from signing in", false))
	cmd.AddCommand(toggle("activate", "Allow a deactivated account to sign in again", true))

	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Reminder maintenance",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark upcoming reminders past their due date as missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *services) error {
				n, err := svc.portal.SweepMissedReminders(ctx)
				if err != nil {
					return fmt.Errorf("sweep reminders: %w", err)
				}
				fmt.Printf("Marked %d reminder(s) missed.\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(sweepCmd)

	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the activity trail",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f hipaa.Filter
			f.UserID, _ = cmd.Flags().GetString("user")
			f.Action, _ = cmd.Flags().GetString("action")
			f.Resource, _ = cmd.Flags().GetString("resource")
			f.Limit, _ = cmd.Flags().GetInt("limit")
			since, _ := cmd.Flags().GetDuration("since")
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			entries, err := hipaa.NewPGStore(pool).List(ctx, f)
			if err != nil {
				return fmt.Errorf("list audit entries: %w", err)
			}

			fmt.Printf("%-20s %-36s %-22s %-12s %s\n", "TIMESTAMP", "USER", "ACTION", "RESOURCE", "RESOURCE ID")
			for _, e := range entries {
				fmt.Printf("%-20s %-36s %-22s %-12s %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.UserID, e.Action, e.Resource, e.ResourceID)
			}
			return nil
		},
	}
	listCmd.Flags().String("user", "", "Only entries for this user ID")
	listCmd.Flags().String("action", "", "Only entries with this action")
	listCmd.Flags().String("resource", "", "Only entries for this resource kind")
	listCmd.Flags().Int("limit", 100, "Maximum entries to print")
	listCmd.Flags().Duration("since", 0, "Only entries newer than this, e.g. 24h")
	cmd.AddCommand(listCmd)

	return cmd
}
