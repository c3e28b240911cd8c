package config

import (
	"fmt"
	"time"
)

const (
	DEFAULT_PROVIDER      = "sse"
	DEFAULT_POLL_INTERVAL = 30 * time.Second
	DEFAULT_PRICE_API     = "https://api.coingecko.com/api/v3"
	DEFAULT_TIMEOUT       = 60 * time.Second
	DEFAULT_LOG_LEVEL     = "info"
	DEFAULT_SYSTEM_PROMPT = "You are CryptoAI, an intelligent crypto trading assistant. " +
		"Answer questions about crypto markets, trading strategies and specific coins clearly and concisely. " +
		"Remind the user that nothing you say is financial advice when they ask what to buy or sell."

	ENV_PREFIX        = "CRYPTOCHAT"
	ENV_PROVIDER      = "PROVIDER"
	ENV_MODEL         = "MODEL"
	ENV_ENDPOINT      = "ENDPOINT"
	ENV_API_KEY       = "API_KEY"
	ENV_SYSTEM_PROMPT = "SYSTEM_PROMPT"
	ENV_SYMBOLS       = "SYMBOLS"
	ENV_POLL_INTERVAL = "POLL_INTERVAL"
	ENV_PRICE_API     = "PRICE_API"
	ENV_TIMEOUT       = "TIMEOUT"
	ENV_LOG_FILE      = "LOG_FILE"
	ENV_LOG_LEVEL     = "LOG_LEVEL"
)

var DEFAULT_SYMBOLS = []string{
	"bitcoin=Bitcoin",
	"ethereum=Ethereum",
	"binancecoin=BNB",
	"solana=Solana",
}

func GetEnvWithPrefix(env string) string {
	return fmt.Sprintf("%s_%s", ENV_PREFIX, env)
}
