package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy carries business limits that can change without a restart.
type Policy struct {
	MaxLinesPerOrder  int      `mapstructure:"maxLinesPerOrder"`
	LowStockThreshold int64    `mapstructure:"lowStockThreshold"`
	PaymentMethods    []string `mapstructure:"paymentMethods"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxLinesPerOrder:  100,
		LowStockThreshold: 0,
	}
}

// AllowsPaymentMethod reports whether method is accepted. An empty list accepts anything.
func (p Policy) AllowsPaymentMethod(method string) bool {
	if len(p.PaymentMethods) == 0 {
		return true
	}
	method = strings.TrimSpace(method)
	for _, allowed := range p.PaymentMethods {
		if strings.EqualFold(strings.TrimSpace(allowed), method) {
			return true
		}
	}
	return false
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicy returns a holder that never reloads.
func NewStaticPolicy(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

// NewPolicyHolder reads the policy file (or the default search paths when
// path is empty) and watches it for changes.
func NewPolicyHolder(path string) (*PolicyHolder, error) {
	v := viper.New()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/orderdesk")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ORDERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("policy.maxLinesPerOrder", defaults.MaxLinesPerOrder)
	v.SetDefault("policy.lowStockThreshold", defaults.LowStockThreshold)
	v.SetDefault("policy.paymentMethods", defaults.PaymentMethods)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPolicy(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			zap.L().Warn("policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("policy reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	p, ok := h.current.Load().(Policy)
	if !ok {
		return DefaultPolicy()
	}
	return p
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	var cfg Policy
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return Policy{}, err
	}
	if err := validatePolicy(cfg); err != nil {
		return Policy{}, err
	}
	return cfg, nil
}

func validatePolicy(cfg Policy) error {
	if cfg.MaxLinesPerOrder <= 0 {
		return errors.New("policy.maxLinesPerOrder must be positive")
	}
	if cfg.LowStockThreshold < 0 {
		return errors.New("policy.lowStockThreshold cannot be negative")
	}
	return nil
}
