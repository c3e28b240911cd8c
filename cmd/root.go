package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/cryptochat/internal/app"
	"github.com/klemjul/cryptochat/internal/chat"
	"github.com/klemjul/cryptochat/internal/config"
	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/klemjul/cryptochat/internal/logger"
	"github.com/klemjul/cryptochat/internal/price"
	"github.com/klemjul/cryptochat/internal/stream"
	"github.com/klemjul/cryptochat/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func RootCommand(app app.App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cryptochat [question...]",
		Short: "Chat with an AI crypto assistant next to live market prices.",
		Args:  cobra.ArbitraryArgs,
		Example: `
cryptochat   # Open the chat with the live prices sidebar
cryptochat "What is Bitcoin?"   # Stream a single answer to stdout
cryptochat --provider openai --model gpt-4o-mini   # Chat through OpenAI
cryptochat prices bitcoin solana   # Print current prices
	`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
		PersistentPreRunE:  setup,
		PreRunE:            validate,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
	}

	rootCmd.Flags().SortFlags = false

	rootCmd.Flags().String("provider", config.DEFAULT_PROVIDER,
		fmt.Sprintf("LLM provider to use %v. (env: %s)", llm.LLMProviders, config.GetEnvWithPrefix(config.ENV_PROVIDER)))
	rootCmd.Flags().String("model", "",
		fmt.Sprintf("LLM model to use, depends on the provider. (env: %s)", config.GetEnvWithPrefix(config.ENV_MODEL)))
	rootCmd.Flags().String("endpoint", "",
		fmt.Sprintf("Chat completion endpoint of the sse provider. (env: %s)", config.GetEnvWithPrefix(config.ENV_ENDPOINT)))
	rootCmd.Flags().String("system-prompt", config.DEFAULT_SYSTEM_PROMPT,
		fmt.Sprintf("Instructions sent as hidden system message. (env: %s)", config.GetEnvWithPrefix(config.ENV_SYSTEM_PROMPT)))
	rootCmd.Flags().Duration("timeout", config.DEFAULT_TIMEOUT,
		fmt.Sprintf("Time to wait for the chat endpoint to answer. (env: %s)", config.GetEnvWithPrefix(config.ENV_TIMEOUT)))

	rootCmd.PersistentFlags().StringSlice("symbols", config.DEFAULT_SYMBOLS,
		fmt.Sprintf("Coins shown in the prices sidebar, as id or id=Name. (env: %s)", config.GetEnvWithPrefix(config.ENV_SYMBOLS)))
	rootCmd.PersistentFlags().Duration("poll-interval", config.DEFAULT_POLL_INTERVAL,
		fmt.Sprintf("Time between two price refreshes. (env: %s)", config.GetEnvWithPrefix(config.ENV_POLL_INTERVAL)))
	rootCmd.PersistentFlags().String("price-api", config.DEFAULT_PRICE_API,
		fmt.Sprintf("Base URL of the CoinGecko API. (env: %s)", config.GetEnvWithPrefix(config.ENV_PRICE_API)))
	rootCmd.PersistentFlags().String("log-file", "",
		fmt.Sprintf("Write JSON logs to this file. (env: %s)", config.GetEnvWithPrefix(config.ENV_LOG_FILE)))
	rootCmd.PersistentFlags().String("log-level", config.DEFAULT_LOG_LEVEL,
		fmt.Sprintf("Log level: debug, info, warn or error. (env: %s)", config.GetEnvWithPrefix(config.ENV_LOG_LEVEL)))
	rootCmd.PersistentFlags().String("config", "", "Read settings from a yaml, toml or json file.")

	viper.BindPFlag(config.ENV_PROVIDER, rootCmd.Flags().Lookup("provider"))
	viper.BindPFlag(config.ENV_MODEL, rootCmd.Flags().Lookup("model"))
	viper.BindPFlag(config.ENV_ENDPOINT, rootCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag(config.ENV_SYSTEM_PROMPT, rootCmd.Flags().Lookup("system-prompt"))
	viper.BindPFlag(config.ENV_TIMEOUT, rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag(config.ENV_SYMBOLS, rootCmd.PersistentFlags().Lookup("symbols"))
	viper.BindPFlag(config.ENV_POLL_INTERVAL, rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.BindPFlag(config.ENV_PRICE_API, rootCmd.PersistentFlags().Lookup("price-api"))
	viper.BindPFlag(config.ENV_LOG_FILE, rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag(config.ENV_LOG_LEVEL, rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix(config.ENV_PREFIX)
	viper.AutomaticEnv()

	rootCmd.AddCommand(PricesCommand(app))

	return rootCmd
}

// logFile is the --log-file handle opened by setup.
var logFile *os.File

func setup(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if err := config.LoadFile(viper.GetViper(), configFile); err != nil {
		return err
	}

	level := viper.GetString(config.ENV_LOG_LEVEL)
	path := viper.GetString(config.ENV_LOG_FILE)
	if path == "" {
		logger.SetLevel(level)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}
	logFile = f
	logger.Init(f, level)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logFile == nil {
		return nil
	}
	logger.Init(io.Discard, viper.GetString(config.ENV_LOG_LEVEL))
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %v", err)
	}
	return nil
}

func validate(cmd *cobra.Command, args []string) error {
	provider := viper.GetString(config.ENV_PROVIDER)
	if !slices.Contains(llm.LLMProviders, llm.LLMProvider(provider)) {
		return fmt.Errorf("invalid provider '%s'. Valid providers are: %v", provider, llm.LLMProviders)
	}

	model := viper.GetString(config.ENV_MODEL)
	if model == "" && llm.LLMProvider(provider) != llm.LLMProviderSSE {
		return fmt.Errorf("model must be specified for provider '%s'", provider)
	}

	if viper.GetDuration(config.ENV_POLL_INTERVAL) <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if _, err := symbols(); err != nil {
		return err
	}

	return nil
}

// symbols parses the configured symbol list. Env and config values may be a
// single comma separated string.
func symbols() ([]price.Symbol, error) {
	var entries []string
	for _, entry := range viper.GetStringSlice(config.ENV_SYMBOLS) {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}
	return price.ParseSymbols(entries)
}

func run(cmd *cobra.Command, args []string, app app.App) error {
	provider := viper.GetString(config.ENV_PROVIDER)
	client, err := app.LLM().NewClient(llm.LLMProvider(provider), llm.LLMClientOptions{
		Model:    viper.GetString(config.ENV_MODEL),
		Endpoint: viper.GetString(config.ENV_ENDPOINT),
		APIKey:   viper.GetString(config.ENV_API_KEY),
		Timeout:  viper.GetDuration(config.ENV_TIMEOUT),
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %v", err)
	}

	initialMessages := []llm.Message{}
	if prompt := viper.GetString(config.ENV_SYSTEM_PROMPT); prompt != "" {
		initialMessages = append(initialMessages, llm.Message{
			Role:    llm.System,
			Content: prompt,
			Hidden:  true,
		})
	}

	consumer := stream.NewConsumer(client)

	if len(args) > 0 {
		return ask(cmd.Context(), cmd.OutOrStdout(), consumer, initialMessages, strings.Join(args, " "))
	}

	syms, err := symbols()
	if err != nil {
		return err
	}

	TUIModel := app.TUI().InitialModel(ui.InitialModelOptions{
		Messages:       initialMessages,
		StartStream:    makeStreamResponder(cmd.Context(), consumer),
		Context:        cmd.Context(),
		Prices:         app.Prices().NewFetcher(viper.GetString(config.ENV_PRICE_API)),
		Symbols:        syms,
		PollInterval:   viper.GetDuration(config.ENV_POLL_INTERVAL),
		RenderMarkdown: app.Format().FormatMarkdown,
	})
	if _, err := app.TUI().Run(TUIModel); err != nil {
		return fmt.Errorf("error running interactive mode: %v", err)
	}
	return nil
}

// ask streams the answer to a single question to out.
func ask(ctx context.Context, out io.Writer, consumer *stream.Consumer, initial []llm.Message, question string) error {
	store := chat.NewStore(initial...)
	history, err := store.Submit(question)
	if err != nil {
		return err
	}

	wrote := false
	err = consumer.Run(ctx, history, stream.Handlers{
		OnDelta: func(text string) {
			store.AppendDelta(text)
			io.WriteString(out, text)
			wrote = true
		},
		OnComplete: func() {
			store.Complete()
			io.WriteString(out, "\n")
		},
		OnError: func(err error) {
			store.Fail(err)
			if wrote {
				io.WriteString(out, "\n")
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to generate response: %w", err)
	}
	return nil
}

func makeStreamResponder(ctx context.Context, consumer *stream.Consumer) func([]llm.Message) <-chan tea.Msg {
	return func(messages []llm.Message) <-chan tea.Msg {
		events := make(chan tea.Msg)
		send := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}

		go func() {
			defer close(events)
			err := consumer.Run(ctx, messages, stream.Handlers{
				OnDelta:    func(text string) { send(ui.StreamDeltaMsg{Text: text}) },
				OnComplete: func() { send(ui.StreamDoneMsg{}) },
				OnError:    func(err error) { send(ui.StreamFailedMsg{Err: err}) },
			})
			if errors.Is(err, stream.ErrStreamInProgress) {
				send(ui.StreamRejectedMsg{Err: err})
			}
		}()

		return events
	}
}
