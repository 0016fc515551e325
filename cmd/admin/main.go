package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"driftchat/backend/internal/complaint"
	"driftchat/backend/internal/config"
	"driftchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  sessions [limit]   list recent chat sessions
  reports [limit]    list recent reports
  announce <text>    broadcast an announcement to every connected participant`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		logrus.WithError(err).Fatal("admin command failed")
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch command {
	case "sessions":
		s, err := openStorage(cfg, true, false)
		if err != nil {
			return err
		}
		return listSessions(ctx, s, limitArg(args))

	case "reports":
		s, err := openStorage(cfg, true, false)
		if err != nil {
			return err
		}
		return listReports(ctx, complaint.NewService(s), limitArg(args))

	case "announce":
		if len(args) == 0 {
			return fmt.Errorf("usage: admin announce <text>")
		}
		s, err := openStorage(cfg, false, true)
		if err != nil {
			return err
		}
		if err := s.PublishAnnouncement(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Println("Announcement published.")
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func openStorage(cfg *config.Config, needDB, needRedis bool) (*storage.Service, error) {
	var db *gorm.DB
	if needDB {
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("DATABASE_DSN is not set")
		}
		var err error
		if db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{}); err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
	}
	var rdb *redis.Client
	if needRedis {
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is not set")
		}
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	return storage.NewStorageService(db, rdb), nil
}

func limitArg(args []string) int {
	if len(args) == 0 {
		return 20
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 20
	}
	return n
}

func listSessions(ctx context.Context, s storage.Storage, limit int) error {
	sessions, err := s.RecentSessions(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tTYPE\tSTARTED\tDURATION\tACTIVE\tEND REASON")
	for _, session := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			session.RoomToken,
			session.ChatType,
			session.StartedAt.Format(time.RFC3339),
			time.Duration(session.DurationMs)*time.Millisecond,
			session.IsActive,
			session.EndReason,
		)
	}
	return w.Flush()
}

func listReports(ctx context.Context, svc *complaint.Service, limit int) error {
	reports, err := svc.Recent(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPORTER\tTARGET\tROOM\tREASON\tSTATUS\tCREATED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ReportID, r.ReporterID, r.TargetID, r.RoomToken, r.Reason, r.Status,
			r.CreatedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}
