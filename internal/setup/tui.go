package setup

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/config"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

const generatedConfigFile = "config.gen.yaml"

// RunTUI launches the terminal configuration wizard and writes the result
// to config.gen.yaml.
func RunTUI() error {
	var (
		platform      string
		portfolioName string
		allocationStr string
		frequency     string
		thresholdStr  string
		minTradeStr   string
		autoRebalance bool
		paperTrading  bool
		confirm       bool
	)

	// defaults
	portfolioName = "main"
	defaults := domain.DefaultRebalanceSettings()
	frequency = string(defaults.Frequency)
	thresholdStr = defaults.Threshold.String()
	minTradeStr = defaults.MinTradeValue.String()
	paperTrading = defaults.PaperTrading

	clearAndHeader()
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your portfolio.\n"))

	// platform
	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Static (fixed demo prices)", "static"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// portfolio
	clearAndHeader()
	fmt.Println(stepStyle.Render("STEP 2: PORTFOLIO"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Portfolio Name").
				Value(&portfolioName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Target Allocation").
				Description(fmt.Sprintf("ASSET:PERCENT pairs summing to 100 (e.g. BTC:60,ETH:40). Supported: %s", supportedAssetList())).
				Value(&allocationStr).
				Validate(func(s string) error {
					_, err := parseAllocation(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// rebalance policy
	clearAndHeader()
	fmt.Println(stepStyle.Render("STEP 3: REBALANCE POLICY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Rebalance Frequency").
				Options(
					huh.NewOption("Daily", "daily"),
					huh.NewOption("Weekly", "weekly"),
					huh.NewOption("Monthly", "monthly"),
					huh.NewOption("Quarterly", "quarterly"),
				).
				Value(&frequency),
			huh.NewInput().
				Title("Deviation Threshold %").
				Description("Rebalance only when an asset drifts more than this (e.g. 5)").
				Value(&thresholdStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Minimum Trade Value USD").
				Description("Trades below this value are dropped (e.g. 10)").
				Value(&minTradeStr).
				Validate(validatePositiveDecimal),
			huh.NewConfirm().
				Title("Auto-rebalance without confirmation?").
				Value(&autoRebalance),
			huh.NewConfirm().
				Title("Paper trading (no real orders)?").
				Value(&paperTrading),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	clearAndHeader()
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nPortfolio: %s\nAllocation: %s\nFrequency: %s\nThreshold: %s%%\nMin Trade: $%s\nAuto: %t\nPaper: %t\n",
		platform, portfolioName, allocationStr, frequency, thresholdStr, minTradeStr, autoRebalance, paperTrading,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	entries, err := parseAllocation(allocationStr)
	if err != nil {
		return err
	}

	threshold, _ := decimal.NewFromString(thresholdStr)
	minTrade, _ := decimal.NewFromString(minTradeStr)

	cfg := config.ConfigYAML{
		Platform: platform,
		Portfolios: []config.PortfolioYAML{{
			Name:          portfolioName,
			Allocation:    entries,
			Frequency:     frequency,
			Threshold:     threshold,
			MinTradeValue: minTrade,
			AutoRebalance: autoRebalance,
			PaperTrading:  &paperTrading,
		}},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(generatedConfigFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", generatedConfigFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func clearAndHeader() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("KUSTODIAN CONFIG WIZARD"))
}

// parseAllocation validates an ASSET:PERCENT list the same way the resulting
// config will be validated, so mistakes surface in the wizard, not at boot.
func parseAllocation(s string) ([]config.AllocationEntryYAML, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("allocation cannot be empty")
	}

	var (
		yamlEntries   []config.AllocationEntryYAML
		domainEntries []domain.AllocationEntry
	)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry %q, want ASSET:PERCENT", part)
		}
		percent, err := decimal.NewFromString(kv[1])
		if err != nil {
			return nil, fmt.Errorf("invalid percent in %q", part)
		}
		asset := strings.ToUpper(strings.TrimSpace(kv[0]))
		yamlEntries = append(yamlEntries, config.AllocationEntryYAML{Asset: asset, Percent: percent})
		domainEntries = append(domainEntries, domain.AllocationEntry{Asset: asset, Percent: percent})
	}

	if _, err := domain.NewAllocation(domainEntries); err != nil {
		return nil, err
	}
	return yamlEntries, nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func supportedAssetList() string {
	assets := make([]string, 0, len(domain.SupportedAssets))
	for a := range domain.SupportedAssets {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return strings.Join(assets, ", ")
}
