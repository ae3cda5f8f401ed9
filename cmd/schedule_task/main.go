package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/config"
	"restopay_app/internal/logging"
	"restopay_app/internal/models"
	"restopay_app/internal/services"
	"restopay_app/internal/tasks"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory), e.g. invoice_backfill or send_invoice_notification")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (default: now, format: 2006-01-02 15:04 or RFC3339)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks, e.g. FREQ=HOURLY")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")

	flag.Parse()

	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json_args>] [-due <YYYY-MM-DD HH:MM>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect DB", zap.Error(err))
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		logger.Fatal("Invalid JSON arguments", zap.Error(err))
	}

	due, err := parseDue(*dueStr)
	if err != nil {
		logger.Fatal("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339", zap.Error(err))
	}

	kind := models.ScheduledTaskType(*taskType)
	if kind != models.ScheduledTaskTypeOneTime && kind != models.ScheduledTaskTypeRecurring {
		logger.Fatal("Unknown task type", zap.String("tasktype", *taskType))
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	} else if kind == models.ScheduledTaskTypeRecurring {
		logger.Fatal("Recurring tasks need -recurring")
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		logger.Fatal("Failed to build task", zap.Error(err))
	}
	if err := tasks.NewGormTaskStore(db).CreateTask(context.Background(), task); err != nil {
		logger.Fatal("Failed to create task", zap.Error(err))
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}

func parseDue(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}
