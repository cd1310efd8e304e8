package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"photobooth/internal/payment"
)

func main() {
	_ = godotenv.Load()

	var (
		checkFlag   bool
		amountFlag  int64
		dllFlag     string
		portFlag    string
		timeoutFlag int
		charsetFlag string
	)
	flag.BoolVar(&checkFlag, "check", false, "check the terminal connection")
	flag.Int64Var(&amountFlag, "amount", 0, "purchase amount in halalah (1/100 SAR)")
	flag.StringVar(&dllFlag, "dll", envOr("EFTPOS_DLL_PATH", "EFTPOSLib.dll"), "path to the vendor DLL")
	flag.StringVar(&portFlag, "port", envOr("EFTPOS_COM_PORT", payment.DefaultComPort), "terminal COM port")
	flag.IntVar(&timeoutFlag, "timeout", envInt("EFTPOS_TIMEOUT_SEC", payment.DefaultTimeoutSec), "terminal timeout in seconds")
	flag.StringVar(&charsetFlag, "charset", envOr("EFTPOS_CHARSET", payment.DefaultCharset), "terminal charset")
	flag.Parse()

	if !checkFlag && amountFlag == 0 {
		exitWithError(errors.New("either -check or -amount must be provided"))
	}

	p := payment.NewProvider(payment.Options{
		DLLPath:    dllFlag,
		ComPort:    portFlag,
		TimeoutSec: timeoutFlag,
		Charset:    charsetFlag,
		Logger:     zerolog.New(os.Stderr).With().Timestamp().Logger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutFlag+10)*time.Second)
	defer cancel()

	if checkFlag {
		res, err := p.CheckConnection(ctx)
		if err != nil {
			exitWithError(fmt.Errorf("check connection: %w", err))
		}
		fmt.Println(res)
		return
	}

	res, err := p.Purchase(ctx, amountFlag)
	if err != nil {
		exitWithError(fmt.Errorf("purchase: %w", err))
	}
	fmt.Println(res)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
