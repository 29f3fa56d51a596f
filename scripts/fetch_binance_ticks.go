package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
)

// aggTrade is one Binance aggregate trade.
type aggTrade struct {
	Price string `json:"p"`
	Time  int64  `json:"T"` // trade time in milliseconds
}

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	instrument := flag.String("instrument", "", "Instrument id written to the CSV (default: lowercased symbol)")
	limit := flag.Int("limit", 1000, "Number of trades to fetch (max 1000)")
	output := flag.String("output", "", "Output CSV file path")
	flag.Parse()

	if *instrument == "" {
		*instrument = *symbol
	}
	if *output == "" {
		*output = fmt.Sprintf("data/%s_ticks.csv", *symbol)
	}

	url := fmt.Sprintf("https://api.binance.com/api/v3/aggTrades?symbol=%s&limit=%d", *symbol, *limit)

	log.Printf("Fetching %d %s trades from Binance...", *limit, *symbol)

	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Failed to fetch data: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	var trades []aggTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		log.Fatalf("Failed to parse JSON: %v", err)
	}

	log.Printf("Fetched %d trades", len(trades))

	if err := os.MkdirAll("data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Header matching the tick CSV format the backfill reads.
	writer.Write([]string{"instrument_id", "timestamp", "price"})

	for _, t := range trades {
		writer.Write([]string{
			*instrument,
			strconv.FormatInt(t.Time/1000, 10), // unix seconds
			t.Price,
		})
	}

	log.Printf("Saved to %s", *output)
}
