package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"assistantportal/internal/config"
	"assistantportal/internal/database"
	"assistantportal/internal/domain/archive"
	"assistantportal/internal/domain/notification"
	"assistantportal/internal/pkg/jwt"
)

type conversation struct {
	name  string
	turns []string
}

var conversations = []conversation{
	{name: "연차 사용 문의", turns: []string{
		"이번 달 남은 연차가 며칠이야?",
		"현재 잔여 연차는 7일입니다. 내년 연차를 미리 사용하실 수도 있습니다.",
	}},
	{name: "출장비 결재", turns: []string{
		"지난주 부산 출장비 결재 올려줘",
		"출장비 정산 결재 초안을 준비했습니다. 내용을 확인해 주세요.",
	}},
}

func main() {
	userID := flag.String("user", "E1001", "employee id to seed")
	name := flag.String("name", "홍길동", "employee display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db, append(archive.Models(), &notification.Received{})...); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	log.Println("Cleaning old data...")
	db.Exec("DELETE FROM archive_messages WHERE archive_id IN (SELECT id FROM archives WHERE user_id = ?)", *userID)
	db.Exec("DELETE FROM archives WHERE user_id = ?", *userID)
	db.Exec("DELETE FROM received_notifications WHERE user_id = ?", *userID)

	ctx := context.Background()
	store := archive.NewStore(archive.NewRepository(db), nil)

	if _, err := store.List(ctx, *userID); err != nil {
		log.Fatal("default archive failed:", err)
	}
	for _, conv := range conversations {
		a, err := store.Create(ctx, *userID, conv.name)
		if err != nil {
			log.Fatalf("create archive %q failed: %v", conv.name, err)
		}
		for i, text := range conv.turns {
			role := archive.RoleUser
			if i%2 == 1 {
				role = archive.RoleAssistant
			}
			if _, err := store.AppendMessage(ctx, a.ID, role, text, false); err != nil {
				log.Fatalf("append message failed: %v", err)
			}
		}
		log.Printf("Archive created: %s (%d messages)", conv.name, len(conv.turns))
	}

	history := notification.NewRepository(db)
	samples := []notification.Envelope{
		{Event: notification.EventBirthday, EventID: "seed-birthday"},
		{Event: notification.EventLeaveGrant, EventID: "seed-leave-grant", Payload: map[string]any{"days": 15}},
	}
	for _, env := range samples {
		if err := history.Save(ctx, notification.ReceivedFromEnvelope(*userID, env, notification.Route(env))); err != nil {
			log.Printf("seed notification %s failed: %v", env.EventID, err)
		}
	}

	token, err := jwt.New(cfg.JWTSecret, 30*24*time.Hour).GenerateToken(*userID, *name, "employee")
	if err != nil {
		log.Fatal("token generation failed:", err)
	}

	log.Println("Seeding completed")
	fmt.Printf("dev token for %s:\n%s\n", *userID, token)
}
