package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// MenuUI provides the interactive interface. Every action delegates to the
// same handler the matching subcommand uses.
type MenuUI struct{}

// NewMenuUI creates the menu interface
func NewMenuUI() *MenuUI {
	return &MenuUI{}
}

// Run starts the interactive menu system
func (ui *MenuUI) Run() error {
	log.Info().Msg("Starting ESGRun interactive menu")

	// Clear screen and show banner
	fmt.Print("\033[2J\033[H")
	ui.showBanner()

	for {
		choice, err := ui.showMainMenu()
		if err != nil {
			return fmt.Errorf("menu error: %w", err)
		}

		if err := ui.handleMenuChoice(choice); err != nil {
			if err.Error() == "exit" {
				break
			}
			log.Error().Err(err).Msg("Menu action failed")
			ui.waitForEnter()
		}
	}

	log.Info().Msg("ESGRun menu session ended")
	return nil
}

// showBanner displays the interface banner
func (ui *MenuUI) showBanner() {
	fmt.Printf(`
 ╔═══════════════════════════════════════════════════════════╗
 ║                     📈 %s %s                      ║
 ║             ESG Long-Short Research Pipeline              ║
 ║                                                           ║
 ║    Scrape ratings, fetch prices, analyze and report       ║
 ║    through one guided menu.                               ║
 ╚═══════════════════════════════════════════════════════════╝

`, appName, version)
}

// showMainMenu displays the main menu and gets user choice
func (ui *MenuUI) showMainMenu() (string, error) {
	fmt.Printf(`
╔══════════════ MAIN MENU ══════════════╗

 1. 🔍 Scrape - Sustainalytics Ratings
 2. 💹 Prices - Databento Daily Closes
 3. 📊 Analyze - Long-Short Performance
 4. 📄 Report - Artifact Bundle
 5. 📈 Monitor - HTTP Endpoints
 6. ⏰ Schedule - Recurring Runs
 0. 🚪 Exit

╚═══════════════════════════════════════╝

Enter your choice (0-6): `)

	var choice string
	if _, err := fmt.Scanln(&choice); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return choice, nil
}

// handleMenuChoice routes menu selections to the shared handlers
func (ui *MenuUI) handleMenuChoice(choice string) error {
	switch choice {
	case "1":
		return ui.handleScrape()
	case "2":
		return ui.handlePrices()
	case "3":
		return ui.handleAnalyze()
	case "4":
		return ui.handleReport()
	case "5":
		return ui.handleMonitor()
	case "6":
		return ui.handleSchedule()
	case "0":
		return fmt.Errorf("exit")
	default:
		fmt.Printf("❌ Invalid choice: %s\n", choice)
		return nil
	}
}

func (ui *MenuUI) handleScrape() error {
	fmt.Println("🔍 Running ratings scrape...")

	if err := runScrape(newMockCommand(), nil); err != nil {
		log.Error().Err(err).Msg("Scrape failed")
		fmt.Printf("❌ Scrape failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

func (ui *MenuUI) handlePrices() error {
	fmt.Println("💹 Downloading daily closes...")

	if err := runPrices(newMockCommand(), nil); err != nil {
		log.Error().Err(err).Msg("Price download failed")
		fmt.Printf("❌ Price download failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

func (ui *MenuUI) handleAnalyze() error {
	fmt.Printf("Cap each book at its N strongest names (Enter keeps all): ")
	var raw string
	fmt.Scanln(&raw)

	cmd := newMockCommand()
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if _, err := strconv.Atoi(trimmed); err != nil {
			fmt.Printf("❌ Invalid number: %s\n", trimmed)
			ui.waitForEnter()
			return nil
		}
		_ = cmd.Flags().Set("top-n", trimmed)
	}

	fmt.Println("📊 Running long-short analysis...")
	if err := runAnalyze(cmd, nil); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		fmt.Printf("❌ Analysis failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

func (ui *MenuUI) handleReport() error {
	fmt.Println("📄 Running analysis and writing the report bundle...")

	if err := runReport(newMockCommand(), nil); err != nil {
		log.Error().Err(err).Msg("Report run failed")
		fmt.Printf("❌ Report run failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

func (ui *MenuUI) handleMonitor() error {
	fmt.Println("📈 Starting monitoring server. Press Ctrl+C to stop and return to the menu.")

	if err := runMonitor(newMockCommand(), nil); err != nil {
		log.Error().Err(err).Msg("Monitor failed")
		fmt.Printf("❌ Monitor failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

func (ui *MenuUI) handleSchedule() error {
	fmt.Println("⏰ Starting scheduler daemon. Press Ctrl+C to stop and return to the menu.")

	if err := runSchedule(newMockCommand(), nil); err != nil {
		log.Error().Err(err).Msg("Scheduler failed")
		fmt.Printf("❌ Scheduler failed: %v\n", err)
	}
	ui.waitForEnter()
	return nil
}

// newMockCommand builds a flag-complete command so menu actions reuse the
// exact CLI handlers
func newMockCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "Path to YAML config file")
	addRunFlags(cmd.Flags())
	cmd.Flags().Int("start-page", 0, "First listing page")
	cmd.Flags().Int("end-page", 0, "Last listing page")
	cmd.Flags().String("out", "", "Output directory override")
	cmd.Flags().String("start", "", "Window start override")
	cmd.Flags().String("end", "", "Window end override")
	cmd.Flags().Bool("refresh", false, "Drop the cached window and refetch")
	cmd.Flags().Bool("charts", true, "Render PNG charts")
	cmd.Flags().String("addr", "", "Listen address override")
	cmd.Flags().String("cron", "", "Cron spec override")
	cmd.Flags().Bool("now", false, "Trigger one run immediately")
	return cmd
}

func (ui *MenuUI) waitForEnter() {
	fmt.Printf("\nPress Enter to continue...")
	fmt.Scanln()
}
