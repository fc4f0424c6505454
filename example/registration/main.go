package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/formfiller"
	"github.com/tbxark/formfiller/agent"
	"github.com/tbxark/formfiller/intent"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/session"
)

func main() {
	conf := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	log.Configure(log.Config{Level: "warn", Pretty: true, Service: "registration"})
	logger := log.WithComponent("example")

	config, err := loadConfig(*conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := startApp(context.Background(), config); err != nil {
		logger.Fatal().Err(err).Msg("start app")
	}
}

func startApp(ctx context.Context, config *Config) error {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return err
	}
	store := session.NewMemoryStore()
	defer store.Close()

	filler, err := formfiller.NewToolBased(cm, store, formfiller.Options{Lang: config.Lang})
	if err != nil {
		return err
	}
	files, err := agent.NewFileSubmitter(config.SubmissionsDir)
	if err != nil {
		return err
	}
	recognizer, err := intent.NewToolBasedRecognizer(cm)
	if err != nil {
		return err
	}
	formAgent, err := agent.NewAgent(
		"RegistrationFiller",
		"An agent that collects conference registrations through conversation",
		config.Fields,
		filler,
		agent.WithSubmitter(&registrationDesk{files: files, logger: log.WithComponent("registration")}),
		agent.WithIntentRecognizer(intent.NewFailbackRecognizer(recognizer, intent.NewLocalRecognizer())),
	)
	if err != nil {
		return err
	}
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: formAgent,
	})

	chatCtx := agent.WithConversationKey(ctx, "terminal")
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Welcome to conference registration. Tell me about yourself to get started:")
	for {
		fmt.Print("You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("Input closed. Bye.")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		iter := runner.Run(chatCtx, []adk.Message{schema.UserMessage(input)})
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			fmt.Printf("\nAssistant: %v\n======\n", msg.Content)
		}
	}
}
