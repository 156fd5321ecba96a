package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// 기본 로테이션과 픽업 큐를 시드하는 개발용 스크립트.
// 여러 번 실행해도 안전하다.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	err = db.Ping()
	if err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database successfully!")

	// 기본 로테이션
	var rotationID string
	err = db.QueryRow(`
		INSERT INTO rotations (name, is_random)
		VALUES ('Standard Rotation', FALSE)
		ON CONFLICT (name) DO UPDATE SET is_random = EXCLUDED.is_random
		RETURNING id
	`).Scan(&rotationID)
	if err != nil {
		log.Fatal("Failed to insert rotation:", err)
	}

	// 맵과 로테이션 엔트리
	maps := []struct {
		fullName  string
		shortName string
		ordinal   int
		reward    int
	}{
		{"Dust", "dust", 0, 10},
		{"Dangerous Crossing", "dx", 1, 5},
		{"Katabatic", "kata", 2, 5},
		{"Arx Novena", "arx", 3, 0},
	}

	for _, m := range maps {
		var mapID string
		err = db.QueryRow(`
			INSERT INTO maps (full_name, short_name)
			VALUES ($1, $2)
			ON CONFLICT (short_name) DO UPDATE SET full_name = EXCLUDED.full_name
			RETURNING id
		`, m.fullName, m.shortName).Scan(&mapID)
		if err != nil {
			log.Fatal("Failed to insert map:", err)
		}

		_, err = db.Exec(`
			INSERT INTO rotation_maps (rotation_id, map_id, ordinal, is_next, raffle_ticket_reward)
			VALUES ($1, $2, $3, $3 = 0, $4)
			ON CONFLICT (rotation_id, map_id) DO UPDATE SET
			    ordinal = EXCLUDED.ordinal,
			    raffle_ticket_reward = EXCLUDED.raffle_ticket_reward
		`, rotationID, mapID, m.ordinal, m.reward)
		if err != nil {
			log.Fatal("Failed to insert rotation map:", err)
		}
	}

	fmt.Println("✅ Rotation and maps seeded!")

	// 기본 큐
	_, err = db.Exec(`
		INSERT INTO queues (name, rotation_id, is_rated)
		VALUES ('Pickup1', $1, TRUE)
		ON CONFLICT (name) DO UPDATE SET rotation_id = EXCLUDED.rotation_id
	`, rotationID)
	if err != nil {
		log.Fatal("Failed to insert queue:", err)
	}

	fmt.Println("✅ Queue seeded!")

	// 시드 결과 확인
	fmt.Println("\n📋 Rotation contents:")
	rows, err := db.Query(`
		SELECT m.full_name, m.short_name, rm.ordinal, rm.is_next, rm.raffle_ticket_reward
		FROM rotation_maps rm
		JOIN maps m ON m.id = rm.map_id
		WHERE rm.rotation_id = $1
		ORDER BY rm.ordinal
	`, rotationID)
	if err != nil {
		log.Fatal("Failed to query rotation maps:", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fullName, shortName string
		var ordinal, reward int
		var isNext bool
		if err := rows.Scan(&fullName, &shortName, &ordinal, &isNext, &reward); err != nil {
			log.Fatal("Failed to scan rotation map:", err)
		}
		marker := " "
		if isNext {
			marker = "→"
		}
		fmt.Printf("  %s %d. %s (%s), reward=%d\n", marker, ordinal, fullName, shortName, reward)
	}
}
