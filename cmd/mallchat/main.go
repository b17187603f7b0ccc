// Command mallchat runs the shopping-mall chatbot as an interactive
// terminal session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/mallchat"
	"github.com/BaSui01/mallchat/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	sessionID := flag.String("session", "", "resume an existing session id")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger, err := config.BuildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	bot, err := mallchat.New(ctx, cfg, mallchat.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to start chatbot", zap.Error(err))
	}
	defer bot.Close()

	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
	}

	fmt.Println("쇼핑몰 챗봇에 오신 것을 환영합니다!")
	fmt.Println("주문 조회와 환불 문의를 도와드립니다. '종료'를 입력하면 대화를 마칩니다.")
	fmt.Println()

	current := *sessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("고객님: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "종료" || strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println("대화를 종료합니다. 감사합니다!")
			break
		}

		reply := bot.ProcessMessage(ctx, input, current)
		current = reply.SessionID
		fmt.Printf("봇: %s\n\n", reply.Response)
	}
}
