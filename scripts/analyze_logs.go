package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

type LogStats struct {
	TotalErrors      int
	PaymentsCreated  int
	PaymentsFailed   int
	WebhooksReceived int
	WebhooksRejected int
	RenewalsCharged  int
	RenewalsFailed   int
	RefundsProcessed int
	TransactionHits  map[string]int
	ErrorPatterns    map[string]int
}

func main() {
	// Get today's date for log file names
	today := time.Now().Format("2006-01-02")
	logDir := "./logs"

	stats := &LogStats{
		TransactionHits: make(map[string]int),
		ErrorPatterns:   make(map[string]int),
	}

	analyzeErrorLogs(filepath.Join(logDir, fmt.Sprintf("error-%s.log", today)), stats)
	analyzeInfoLogs(filepath.Join(logDir, fmt.Sprintf("info-%s.log", today)), stats)

	printReport(stats)
}

func analyzeErrorLogs(logFile string, stats *LogStats) {
	file, err := os.Open(logFile)
	if err != nil {
		fmt.Printf("Error opening log file %s: %v\n", logFile, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		stats.TotalErrors++

		if strings.Contains(line, "create failed") || strings.Contains(line, "declined") {
			stats.PaymentsFailed++
			extractTransactionHit(line, stats)
		}
		if strings.Contains(line, "Webhook signature validation failed") {
			stats.WebhooksRejected++
			extractTransactionHit(line, stats)
		}
		if strings.Contains(line, "Renewal failed") {
			stats.RenewalsFailed++
		}

		extractErrorPattern(line, stats)
	}
}

func analyzeInfoLogs(logFile string, stats *LogStats) {
	file, err := os.Open(logFile)
	if err != nil {
		fmt.Printf("Error opening log file %s: %v\n", logFile, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "Created pending transaction") {
			stats.PaymentsCreated++
			extractTransactionHit(line, stats)
		}
		if strings.Contains(line, "Webhook moved transaction") {
			stats.WebhooksReceived++
			extractTransactionHit(line, stats)
		}
		if strings.Contains(line, "Renewal charged") {
			stats.RenewalsCharged++
		}
		if strings.Contains(line, "Refund processed") {
			stats.RefundsProcessed++
			extractTransactionHit(line, stats)
		}
	}
}

func extractTransactionHit(line string, stats *LogStats) {
	// Extract an opaque transaction UUID from the log line
	idRegex := regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	if id := idRegex.FindString(line); id != "" {
		stats.TransactionHits[id]++
	}
}

func extractErrorPattern(line string, stats *LogStats) {
	// Extract the main error message
	parts := strings.Split(line, ":")
	if len(parts) > 1 {
		errorMsg := strings.TrimSpace(parts[1])
		stats.ErrorPatterns[errorMsg]++
	}
}

func printReport(stats *LogStats) {
	fmt.Println("\n=== Log Analysis Report ===")
	fmt.Println("Generated:", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("\n1. Payment Statistics:")
	fmt.Printf("   Payments Created: %d\n", stats.PaymentsCreated)
	fmt.Printf("   Payments Failed: %d\n", stats.PaymentsFailed)
	fmt.Printf("   Refunds Processed: %d\n", stats.RefundsProcessed)

	fmt.Println("\n2. Webhook Statistics:")
	fmt.Printf("   Webhooks Processed: %d\n", stats.WebhooksReceived)
	fmt.Printf("   Webhooks Rejected: %d\n", stats.WebhooksRejected)

	fmt.Println("\n3. Recurring Billing:")
	fmt.Printf("   Renewals Charged: %d\n", stats.RenewalsCharged)
	fmt.Printf("   Renewals Failed: %d\n", stats.RenewalsFailed)

	fmt.Println("\n4. Error Statistics:")
	fmt.Printf("   Total Errors: %d\n", stats.TotalErrors)

	fmt.Println("\n5. Most Referenced Transactions:")
	printTopTransactions(stats.TransactionHits, 5)

	fmt.Println("\n6. Most Common Errors:")
	printTopErrors(stats.ErrorPatterns, 5)
}

func printTopTransactions(hits map[string]int, limit int) {
	type txnHit struct {
		id    string
		count int
	}

	var list []txnHit
	for id, count := range hits {
		list = append(list, txnHit{id, count})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].count > list[j].count
	})

	for i, hit := range list {
		if i >= limit {
			break
		}
		fmt.Printf("   %s: %d log entries\n", hit.id, hit.count)
	}
}

func printTopErrors(errors map[string]int, limit int) {
	type errorCount struct {
		error string
		count int
	}

	var errorList []errorCount
	for err, count := range errors {
		errorList = append(errorList, errorCount{err, count})
	}

	sort.Slice(errorList, func(i, j int) bool {
		return errorList[i].count > errorList[j].count
	})

	for i, err := range errorList {
		if i >= limit {
			break
		}
		fmt.Printf("   %s: %d occurrences\n", err.error, err.count)
	}
}
