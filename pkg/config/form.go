package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// formValues holds the editable settings as the form widgets see them
type formValues struct {
	interval       string
	retention      string
	composeCommand string
	autoRefresh    bool
	selfUpdate     bool
	save           bool
}

func newFormValues(cfg *Config) *formValues {
	return &formValues{
		interval:       strconv.Itoa(cfg.RefreshIntervalHours),
		retention:      strconv.Itoa(cfg.CacheRetentionDays),
		composeCommand: cfg.ComposeCommand,
		autoRefresh:    cfg.AutoRefreshImages,
		selfUpdate:     cfg.SelfUpdate,
		save:           true,
	}
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

// apply copies validated form values into cfg
func (f *formValues) apply(cfg *Config) error {
	if err := validatePositive(f.interval); err != nil {
		return fmt.Errorf("refresh interval %w", err)
	}
	if err := validatePositive(f.retention); err != nil {
		return fmt.Errorf("cache retention %w", err)
	}
	cfg.RefreshIntervalHours, _ = strconv.Atoi(strings.TrimSpace(f.interval))
	cfg.CacheRetentionDays, _ = strconv.Atoi(strings.TrimSpace(f.retention))
	cfg.ComposeCommand = strings.TrimSpace(f.composeCommand)
	cfg.AutoRefreshImages = f.autoRefresh
	cfg.SelfUpdate = f.selfUpdate
	return nil
}

// EditInteractive shows a form for the common settings and updates cfg in
// place. It reports whether the user asked to save.
func EditInteractive(cfg *Config) (bool, error) {
	values := newFormValues(cfg)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval (hours)").
				Description("How long pulled images and the boxkit install stay fresh").
				Value(&values.interval).
				Validate(validatePositive),
			huh.NewInput().
				Title("Cache retention (days)").
				Description("Cache entries unused for longer than this are removed").
				Value(&values.retention).
				Validate(validatePositive),
			huh.NewInput().
				Title("Compose command").
				Description("Leave empty to detect docker compose or podman compose").
				Value(&values.composeCommand),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Refresh images automatically?").
				Description("Pulls newer images before up/run when the interval has passed").
				Value(&values.autoRefresh).
				Affirmative("Yes").
				Negative("No"),
			huh.NewConfirm().
				Title("Update boxkit automatically?").
				Description(fmt.Sprintf("Pulls %s in %s when the interval has passed", cfg.UpdateRemote, cfg.InstallRoot)).
				Value(&values.selfUpdate).
				Affirmative("Yes").
				Negative("No"),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save settings?").
				Value(&values.save).
				Affirmative("Yes").
				Negative("No"),
		),
	)

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("interactive setup failed: %w", err)
	}
	if err := values.apply(cfg); err != nil {
		return false, err
	}
	return values.save, nil
}
