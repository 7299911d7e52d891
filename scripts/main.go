package main

import (
	"flag"

	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/scripts/internal"
)

var commands = map[string]func() error{
	"migrate":        internal.MigrateDatabase,
	"billing-sync":   internal.RunManualBillingSync,
	"operator-token": internal.GenerateOperatorToken,
	"payment-lookup": internal.LookupPayment,
}

func main() {
	cmd := flag.String("cmd", "", "command to run: migrate, billing-sync, operator-token, payment-lookup")
	flag.Parse()

	log := logger.GetLogger()
	run, ok := commands[*cmd]
	if !ok {
		log.Fatalf("unknown command %q", *cmd)
	}
	if err := run(); err != nil {
		log.Fatalf("%s failed: %v", *cmd, err)
	}
}
