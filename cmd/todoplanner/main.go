package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"todo-planner/internal/bot"
	"todo-planner/internal/config"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
	"todo-planner/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "todoplanner",
	Short: "A to-do list with reminders, served over Telegram",
	Long: `todoplanner keeps a per-user to-do list with due dates, reminders and
recurrence. Run "todoplanner bot" to serve it over Telegram, or use the
task commands to inspect a user's list from the terminal.`,
	SilenceUsage: true,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBot(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "todoplanner %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	files, err := storage.NewDiskStore(cfg.FilesDir)
	if err != nil {
		return fmt.Errorf("files: %w", err)
	}
	log.Printf("[info] attachments stored under %s", files.Root())

	scheduler := service.NewSchedulerService(time.Local)
	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Users:  repository.NewUserRepository(db),
		Tasks:  repository.NewTaskRepository(db),
		Files:  files,
		Timers: scheduler,
		Sorter: service.NewSorter(cfg.SortLocale),
	})
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("To-do planner bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return db, nil
}
