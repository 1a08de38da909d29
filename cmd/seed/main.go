package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"coopwatch/config"
	"coopwatch/models"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

var (
	facilityPath = flag.String("facility", "facility.yaml", "Facility file to upload")
	showAlerts   = flag.Int("alerts", 10, "Print this many recent alert records after seeding (0 to skip)")
)

func main() {
	flag.Parse()

	// Load environment variables
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	dbURL := os.Getenv("FIREBASE_DB_URL")

	if serviceAccountJSON == "" {
		log.Fatal("FIREBASE_SERVICE_ACCOUNT_JSON environment variable is not set")
	}
	if dbURL == "" {
		log.Fatal("FIREBASE_DB_URL environment variable is not set")
	}

	facility, err := config.LoadFacilityFile(*facilityPath)
	if err != nil {
		log.Fatalf("Error loading facility file: %v", err)
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: dbURL}, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	if err != nil {
		log.Fatalf("Error initializing Firebase app: %v", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		log.Fatalf("Error getting database client: %v", err)
	}

	updates := map[string]interface{}{}
	if facility.LotStart != "" {
		updates["facility/lot_start"] = facility.LotStart
	}
	for _, device := range facility.Devices {
		updates["facility/devices/"+device.ID] = device
	}
	for kind, table := range facility.Thresholds {
		updates["facility/thresholds/"+string(kind)] = table
	}
	for day, total := range facility.Water {
		updates["consumption/water/"+day] = total
	}

	if err := client.NewRef("/").Update(ctx, updates); err != nil {
		log.Fatalf("Error seeding facility: %v", err)
	}
	fmt.Printf("Seeded %d nodes from %s\n", len(updates), *facilityPath)

	if *showAlerts <= 0 {
		return
	}

	var alerts map[string]models.AlertRecord
	if err := client.NewRef("alerts").OrderByChild("timestamp").LimitToLast(*showAlerts).Get(ctx, &alerts); err != nil {
		log.Fatalf("Error reading alerts: %v", err)
	}

	records := make([]models.AlertRecord, 0, len(alerts))
	for _, record := range alerts {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })

	fmt.Printf("Recent alerts: %d\n", len(records))
	for _, record := range records {
		fmt.Printf("%s  %-20s %-12s delivered=%v\n",
			record.Timestamp.Format("2006-01-02 15:04:05"), record.Kind, record.SubKey, record.ChannelsDelivered)
	}
}
