package onboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/zhangyang-crazy-one/moltbot-QQ/cmd/moltbot/internal"
	"github.com/zhangyang-crazy-one/moltbot-QQ/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup for the QQ connection and agent provider",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return onboardCmd()
		},
	}
}

func ask(rl *readline.Instance, prompt, fallback string) (string, error) {
	if fallback != "" {
		rl.SetPrompt(fmt.Sprintf("%s [%s]: ", prompt, fallback))
	} else {
		rl.SetPrompt(prompt + ": ")
	}
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	return line, nil
}

func askChoice(rl *readline.Instance, prompt string, choices []string, fallback string) (string, error) {
	for {
		answer, err := ask(rl, fmt.Sprintf("%s (%s)", prompt, strings.Join(choices, "/")), fallback)
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(answer)
		for _, choice := range choices {
			if answer == choice {
				return answer, nil
			}
		}
		fmt.Printf("Please answer one of: %s\n", strings.Join(choices, ", "))
	}
}

func onboardCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("%s moltbot setup — connect to your OneBot backend (napcat, LLOneBot, go-cqhttp)\n\n", internal.Logo)

	conn := cfg.Channel.Connection
	if conn == nil {
		conn = &config.ConnectionConfig{Type: config.ConnectionWS, Host: "127.0.0.1", Port: 3001}
	}

	connType, err := askChoice(rl, "Connection type", []string{config.ConnectionWS, config.ConnectionHTTP}, conn.Type)
	if err != nil {
		return err
	}
	host, err := ask(rl, "Backend host", conn.Host)
	if err != nil {
		return err
	}
	portDefault := ""
	if conn.Port > 0 {
		portDefault = strconv.Itoa(conn.Port)
	}
	portText, err := ask(rl, "Backend port", portDefault)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(strings.TrimSpace(portText))
	if err != nil || port <= 0 {
		return fmt.Errorf("invalid port: %s", portText)
	}
	token, err := ask(rl, "Access token (empty for none)", conn.Token)
	if err != nil {
		return err
	}
	format, err := askChoice(rl, "Message format", []string{config.FormatArray, config.FormatString}, conn.Format())
	if err != nil {
		return err
	}

	dmPolicy, err := askChoice(rl, "Direct message policy",
		[]string{config.DMPolicyPairing, config.DMPolicyOpen, config.DMPolicyAllowlist, config.DMPolicyDisabled},
		valueOr(cfg.Channel.DMPolicy, config.DMPolicyPairing))
	if err != nil {
		return err
	}
	groupPolicy, err := askChoice(rl, "Group policy",
		[]string{config.GroupPolicyAllowlist, config.GroupPolicyOpen, config.GroupPolicyDisabled},
		valueOr(cfg.Channel.GroupPolicy, config.GroupPolicyAllowlist))
	if err != nil {
		return err
	}
	var groupAllow []string
	if groupPolicy == config.GroupPolicyAllowlist {
		entries, err := ask(rl, "Allowed groups (comma-separated ids, empty for none)",
			strings.Join(cfg.Channel.GroupAllowFrom, ","))
		if err != nil {
			return err
		}
		for _, entry := range strings.Split(entries, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				groupAllow = append(groupAllow, trimmed)
			}
		}
	}

	providerName, err := askChoice(rl, "Agent provider", []string{"anthropic", "openai"},
		valueOr(cfg.Agent.Provider, "anthropic"))
	if err != nil {
		return err
	}
	model, err := ask(rl, "Model", cfg.Agent.Model)
	if err != nil {
		return err
	}
	apiKey, err := ask(rl, "API key", cfg.Agent.APIKey)
	if err != nil {
		return err
	}

	cfg.Channel.Connection = &config.ConnectionConfig{
		Type:          connType,
		Host:          host,
		Port:          port,
		Token:         token,
		MessageFormat: format,
	}
	cfg.Channel.DMPolicy = dmPolicy
	cfg.Channel.GroupPolicy = groupPolicy
	cfg.Channel.GroupAllowFrom = groupAllow
	cfg.Agent.Provider = providerName
	cfg.Agent.Model = model
	cfg.Agent.APIKey = apiKey

	if issue := config.ConnectionIssue(cfg.Channel.Connection); issue != "" {
		return fmt.Errorf("connection not usable: %s", issue)
	}

	path := internal.GetConfigPath()
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Printf("\n✓ Config written to %s\n", path)
	fmt.Println("Run `moltbot gateway` to start.")
	return nil
}

func valueOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
