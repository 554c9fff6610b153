package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"todo-planner/internal/config"
	"todo-planner/internal/model"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

// cliEnv is what every task command works against.
type cliEnv struct {
	cfg   config.Config
	tasks *repository.TaskRepository
	user  *model.User
}

// withUser opens the database and resolves the --user flag before running fn.
func withUser(fn func(ctx context.Context, cmd *cobra.Command, env cliEnv, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		telegramID, err := cmd.Flags().GetInt64("user")
		if err != nil {
			return err
		}
		if telegramID == 0 {
			return errors.New("--user is required (Telegram user id)")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		ctx := cmd.Context()
		user, err := repository.NewUserRepository(db).FindByTelegramID(ctx, telegramID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d has not started the bot yet", telegramID)
		}
		if err != nil {
			return err
		}
		return fn(ctx, cmd, cliEnv{cfg: cfg, tasks: repository.NewTaskRepository(db), user: user}, args)
	}
}

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List a user's tasks",
	Args:    cobra.NoArgs,
	RunE: withUser(func(ctx context.Context, cmd *cobra.Command, env cliEnv, args []string) error {
		view, strategy, err := listingFlags(cmd)
		if err != nil {
			return err
		}
		tasks, err := listing(ctx, env, view, strategy)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTasks(view, strategy, tasks, time.Now()))
		return nil
	}),
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: withUser(func(ctx context.Context, cmd *cobra.Command, env cliEnv, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return service.ErrEmptyText
		}
		id, err := env.tasks.Create(ctx, env.user.ID, model.NewTask{Text: text})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Added "+id))
		return nil
	}),
}

var doneCmd = &cobra.Command{
	Use:   "done <n|id>",
	Short: "Toggle a task's completed flag",
	Args:  cobra.ExactArgs(1),
	RunE: withUser(func(ctx context.Context, cmd *cobra.Command, env cliEnv, args []string) error {
		task, err := resolveTask(ctx, cmd, env, args[0])
		if err != nil {
			return err
		}
		completed := !task.Completed
		if err := env.tasks.Update(ctx, env.user.ID, task.ID, model.Patch{Completed: &completed}); err != nil {
			return err
		}
		state := "open"
		if completed {
			state = "done"
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("%q is %s", task.Text, state)))
		return nil
	}),
}

var removeCmd = &cobra.Command{
	Use:     "rm <n|id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: withUser(func(ctx context.Context, cmd *cobra.Command, env cliEnv, args []string) error {
		task, err := resolveTask(ctx, cmd, env, args[0])
		if err != nil {
			return err
		}
		if err := env.tasks.Delete(ctx, env.user.ID, task.ID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Deleted %q", task.Text)))
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{listCmd, addCmd, doneCmd, removeCmd} {
		c.Flags().Int64P("user", "u", 0, "Telegram user id that owns the list")
	}
	for _, c := range []*cobra.Command{listCmd, doneCmd, removeCmd} {
		c.Flags().StringP("view", "v", string(service.ViewAll), "View: all, today, important, planned, assigned")
		c.Flags().StringP("sort", "s", string(service.SortCreationDate), "Order: importance, dueDate, alphabetically, creationDate")
	}
}

func listingFlags(cmd *cobra.Command) (service.View, service.SortStrategy, error) {
	rawView, _ := cmd.Flags().GetString("view")
	rawSort, _ := cmd.Flags().GetString("sort")
	view, err := service.ParseView(rawView)
	if err != nil {
		return "", "", err
	}
	return view, service.ParseSortStrategy(rawSort), nil
}

func listing(ctx context.Context, env cliEnv, view service.View, strategy service.SortStrategy) ([]model.Task, error) {
	tasks, err := env.tasks.List(ctx, env.user.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return service.NewSorter(env.cfg.SortLocale).Sort(service.Filter(view, tasks, now), strategy, now), nil
}

// resolveTask accepts a 1-based position in the listing selected by the
// command's --view/--sort flags, or a task id.
func resolveTask(ctx context.Context, cmd *cobra.Command, env cliEnv, ref string) (model.Task, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		view, strategy, err := listingFlags(cmd)
		if err != nil {
			return model.Task{}, err
		}
		tasks, err := listing(ctx, env, view, strategy)
		if err != nil {
			return model.Task{}, err
		}
		if n < 1 || n > len(tasks) {
			return model.Task{}, fmt.Errorf("no task #%d in the %s list", n, view)
		}
		return tasks[n-1], nil
	}

	task, err := env.tasks.FindByID(ctx, env.user.ID, ref)
	if err != nil {
		return model.Task{}, err
	}
	return *task, nil
}
