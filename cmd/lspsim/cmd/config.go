package cmd

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/mechanism/espa"
	"github.com/lsp-research/lspmarket/market/mechanism/honest"
	"github.com/lsp-research/lspmarket/simulation"
	"github.com/lsp-research/lspmarket/state/stake"
)

const envPrefix = "LSPSIM"

// adjustment policies selectable in the config
const (
	adjustNone   = "none"
	adjustAll    = "all"
	adjustRandom = "random"
)

// Config is the configuration of a simulation run, read from a config file, the
// environment (LSPSIM_*) and command line flags, in increasing order of precedence.
type Config struct {
	Seed         uint64 `mapstructure:"seed"`
	Epochs       uint64 `mapstructure:"epochs" validate:"gt=0"`
	EpochSize    int    `mapstructure:"epoch_size" validate:"gt=0"`
	Budget       int    `mapstructure:"budget" validate:"gt=0"`
	Workers      int    `mapstructure:"workers" validate:"gt=0"`
	Mechanism    string `mapstructure:"mechanism" validate:"oneof=espa honest"`
	StableWindow uint64 `mapstructure:"stable_window"`
	DataDir      string `mapstructure:"datadir"`
	MetricsPort  uint   `mapstructure:"metrics_port" validate:"lte=65535"`

	Adjust   AdjustConfig        `mapstructure:"adjust"`
	Clusters []stake.ClusterSize `mapstructure:"clusters" validate:"required,min=1,dive"`
	ESPA     ESPAConfig          `mapstructure:"espa"`
	Honest   HonestConfig        `mapstructure:"honest"`
}

type AdjustConfig struct {
	Policy string `mapstructure:"policy" validate:"oneof=none all random"`
	// Count is the number of participants revising their bid per epoch under the random policy.
	Count int `mapstructure:"count" validate:"gte=0"`
}

type ESPAConfig struct {
	SlotValue          float64         `mapstructure:"slot_value" validate:"gt=0"`
	ReputationCost     float64         `mapstructure:"reputation_cost" validate:"gte=0"`
	PayStep            decimal.Decimal `mapstructure:"pay_step"`
	ReputationStep     decimal.Decimal `mapstructure:"reputation_step"`
	RequireProposerBid bool            `mapstructure:"require_proposer_bid"`
	InitialBid         ESPABidConfig   `mapstructure:"initial_bid"`
}

type ESPABidConfig struct {
	WillingToPay    decimal.Decimal `mapstructure:"willing_to_pay"`
	Bribable        bool            `mapstructure:"bribable"`
	ReputationValue decimal.Decimal `mapstructure:"reputation_value"`
}

type HonestConfig struct {
	SlotValue float64         `mapstructure:"slot_value" validate:"gt=0"`
	Tip       decimal.Decimal `mapstructure:"tip"`
}

func (c ESPAConfig) auction() espa.Config {
	return espa.Config{
		SlotValue:          c.SlotValue,
		ReputationCost:     c.ReputationCost,
		PayStep:            c.PayStep,
		ReputationStep:     c.ReputationStep,
		RequireProposerBid: c.RequireProposerBid,
	}
}

func (c ESPABidConfig) bid() espa.Bid {
	return espa.Bid{
		WillingToPay:    c.WillingToPay,
		Bribable:        c.Bribable,
		ReputationValue: c.ReputationValue,
	}
}

func (c *Config) runner() simulation.Config {
	return simulation.Config{
		EpochSize: c.EpochSize,
		Budget:    c.Budget,
		Workers:   c.Workers,
		Valuation: c.valuation(),
	}
}

// valuation returns the slot and reputation values of the configured mechanism. Honest
// proposers never miss, so the honest mechanism carries no reputation cost.
func (c *Config) valuation() market.Valuation {
	if c.Mechanism == honest.Name {
		return market.Valuation{SlotValue: c.Honest.SlotValue}
	}
	return market.Valuation{SlotValue: c.ESPA.SlotValue, ReputationCost: c.ESPA.ReputationCost}
}

func setDefaults(v *viper.Viper) {
	runner := simulation.DefaultConfig()
	auction := espa.DefaultConfig()

	v.SetDefault("seed", 0)
	v.SetDefault("epochs", 100)
	v.SetDefault("epoch_size", runner.EpochSize)
	v.SetDefault("budget", runner.Budget)
	v.SetDefault("workers", runner.Workers)
	v.SetDefault("mechanism", espa.Name)
	v.SetDefault("stable_window", 0)
	v.SetDefault("datadir", "")
	v.SetDefault("metrics_port", 0)
	v.SetDefault("adjust.policy", adjustRandom)
	v.SetDefault("adjust.count", 1)
	v.SetDefault("espa.slot_value", auction.SlotValue)
	v.SetDefault("espa.reputation_cost", auction.ReputationCost)
	v.SetDefault("espa.pay_step", auction.PayStep.String())
	v.SetDefault("espa.reputation_step", auction.ReputationStep.String())
	v.SetDefault("espa.require_proposer_bid", false)
	v.SetDefault("espa.initial_bid.willing_to_pay", "0")
	v.SetDefault("espa.initial_bid.bribable", false)
	v.SetDefault("espa.initial_bid.reputation_value", "0")
	v.SetDefault("honest.slot_value", market.DefaultProposerSlotValue)
	v.SetDefault("honest.tip", "0")
}

// bindFlags makes every flag of the set override the config key of the same name,
// with dashes replaced by underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs *multierror.Error
	flags.VisitAll(func(f *pflag.Flag) {
		key := flagKey(f.Name)
		if key == "" {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not bind flag %s: %w", f.Name, err))
		}
	})
	return errs.ErrorOrNil()
}

func flagKey(name string) string {
	switch name {
	case "seed", "epochs", "budget", "workers", "mechanism", "datadir":
		return name
	case "epoch-size":
		return "epoch_size"
	case "stable-window":
		return "stable_window"
	case "metrics-port":
		return "metrics_port"
	case "adjust":
		return "adjust.policy"
	case "adjust-count":
		return "adjust.count"
	default:
		return ""
	}
}

// decimalHook decodes strings and numbers into decimals.
func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return nil, fmt.Errorf("cannot decode %s into a decimal", from)
	}
}

// loadConfig decodes and validates the configuration held by the given viper instance.
func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the config and reports all problems at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	err := validator.New().Struct(c)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = multierror.Append(errs, fmt.Errorf("%s: failed on '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	nonNegative := map[string]decimal.Decimal{
		"espa.pay_step":                     c.ESPA.PayStep,
		"espa.reputation_step":              c.ESPA.ReputationStep,
		"espa.initial_bid.willing_to_pay":   c.ESPA.InitialBid.WillingToPay,
		"espa.initial_bid.reputation_value": c.ESPA.InitialBid.ReputationValue,
		"honest.tip":                        c.Honest.Tip,
	}
	keys := maps.Keys(nonNegative)
	slices.Sort(keys)
	for _, key := range keys {
		if nonNegative[key].IsNegative() {
			errs = multierror.Append(errs, fmt.Errorf("%s: must not be negative, got %s", key, nonNegative[key]))
		}
	}

	if c.Adjust.Policy == adjustRandom {
		total := 0
		for _, g := range c.Clusters {
			total += g.Count
		}
		if c.Adjust.Count < 1 || c.Adjust.Count > total {
			errs = multierror.Append(errs, fmt.Errorf("adjust.count: must be within [1, %d] for the random policy, got %d", total, c.Adjust.Count))
		}
	}

	return errs.ErrorOrNil()
}

func (c *Config) adjustPolicy() simulation.AdjustPolicy {
	switch c.Adjust.Policy {
	case adjustNone:
		return simulation.AdjustNone()
	case adjustAll:
		return simulation.AdjustAll()
	default:
		return simulation.AdjustRandomSubset(c.Adjust.Count)
	}
}

func (c *Config) honestOptions() []honest.Option {
	return []honest.Option{
		honest.WithSlotValue(c.Honest.SlotValue),
		honest.WithOptimizer(market.WithPoolSize(c.EpochSize), market.WithWorkers(1)),
	}
}
