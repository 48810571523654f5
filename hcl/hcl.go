package hcl

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/sokcho-kim/docmask/convert"
	"github.com/sokcho-kim/docmask/llm"
	"github.com/sokcho-kim/docmask/mask"
	"github.com/sokcho-kim/docmask/pdftext"
	"github.com/sokcho-kim/docmask/rules"
)

// Classifier kinds accepted in a classifier block label.
const (
	KindLLM   = "llm"
	KindRules = "rules"
)

type HCL struct {
	Categories  []*Category   `hcl:"category,block" json:"categories"`
	Classifiers []*Classifier `hcl:"classifier,block" json:"classifiers"`
	Converter   *Converter    `hcl:"converter,block" json:"converter"`
	Engine      *Engine       `hcl:"engine,block" json:"engine"`
}

// Category turns detection on or off for one category and optionally picks
// the masking symbol. When any category blocks are present, only the listed
// categories are detected; with none, every supported category is.
type Category struct {
	Name    string `hcl:"name,label"`
	Enabled *bool  `hcl:"enabled,optional"`
	Symbol  string `hcl:"symbol,optional"`
}

type Classifier struct {
	Kind string `hcl:"kind,label"`

	// Model-backed classifiers.
	BaseURL   string `hcl:"base_url,optional"`
	Model     string `hcl:"model,optional"`
	APIKeyEnv string `hcl:"api_key_env,optional"`
	Timeout   string `hcl:"timeout,optional"`

	// Pattern-backed classifiers. Defaults are used when no rule blocks are
	// given.
	Rules []Rule `hcl:"rule,block"`
}

type Rule struct {
	Category string `hcl:"category,label"`
	Name     string `hcl:"name,optional"`
	Match    string `hcl:"match"`
}

type Converter struct {
	Command string `hcl:"command"`
	Timeout string `hcl:"timeout,optional"`
}

type Engine struct {
	StepTimeout string `hcl:"step_timeout,optional"`
}

// Parse takes a file path and decodes the file from disk into HCL types.
func Parse(path string) (HCL, error) {
	var h HCL
	err := hclsimple.DecodeFile(path, nil, &h)
	if err != nil {
		return HCL{}, err
	}
	return h, nil
}

// BuildEngine maps the decoded config onto a ready-to-run engine and the
// settings its runs should use. No engine is returned if any config is
// invalid.
func BuildEngine(h HCL, l hclog.Logger) (*mask.Engine, mask.Settings, error) {
	if l == nil {
		l = hclog.Default()
	}

	settings, err := MapSettings(h.Categories)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := mapClassifiers(h.Classifiers, l)
	if err != nil {
		return nil, nil, err
	}

	converter, err := mapConverter(h.Converter, l)
	if err != nil {
		return nil, nil, err
	}

	stepTimeout := time.Duration(0)
	if h.Engine != nil {
		stepTimeout, err = mapTimeout(h.Engine.StepTimeout)
		if err != nil {
			return nil, nil, err
		}
	}

	engine, err := mask.New(mask.Config{
		Converter:   converter,
		Extractor:   pdftext.NewExtractor(pdftext.Config{Logger: l.Named("pdftext")}),
		Classifier:  classifier,
		Locator:     pdftext.NewLocator(pdftext.Config{Logger: l.Named("pdftext")}),
		StepTimeout: stepTimeout,
		Logger:      l.Named("engine"),
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, settings, nil
}

// MapSettings maps category blocks to detection settings. No blocks at all
// means the defaults, with every category enabled.
func MapSettings(cfgs []*Category) (mask.Settings, error) {
	if len(cfgs) == 0 {
		return mask.DefaultSettings(), nil
	}

	settings := mask.Settings{}
	for _, c := range cfgs {
		enabled := true
		if c.Enabled != nil {
			enabled = *c.Enabled
		}
		settings[mask.Category(c.Name)] = mask.Setting{
			Enabled: enabled,
			Symbol:  c.Symbol,
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// MapRules maps rule blocks to compiled rules.
func MapRules(cfgs []Rule) ([]*rules.Rule, error) {
	mapped := make([]*rules.Rule, len(cfgs))
	for i, r := range cfgs {
		rule, err := rules.New(mask.Category(r.Category), r.Name, r.Match)
		if err != nil {
			return nil, err
		}
		mapped[i] = rule
	}
	return mapped, nil
}

// mapClassifiers maps classifier blocks to a single classifier, composing
// multiple blocks in declaration order. With no blocks the built-in rules are
// used, so a config without a reachable model still works.
func mapClassifiers(cfgs []*Classifier, l hclog.Logger) (mask.Classifier, error) {
	if len(cfgs) == 0 {
		return rules.NewClassifier(rules.Config{Logger: l.Named(KindRules)})
	}

	classifiers := make([]mask.Classifier, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Kind {
		case KindLLM:
			timeout, err := mapTimeout(c.Timeout)
			if err != nil {
				return nil, err
			}
			keyEnv := c.APIKeyEnv
			if keyEnv == "" {
				keyEnv = llm.EnvAPIKey
			}
			built, err := llm.New(llm.Config{
				BaseURL: c.BaseURL,
				Model:   c.Model,
				APIKey:  os.Getenv(keyEnv),
				Timeout: timeout,
				Logger:  l.Named(KindLLM),
			})
			if err != nil {
				return nil, err
			}
			classifiers = append(classifiers, built)

		case KindRules:
			mapped, err := MapRules(c.Rules)
			if err != nil {
				return nil, err
			}
			built, err := rules.NewClassifier(rules.Config{
				Rules:  mapped,
				Logger: l.Named(KindRules),
			})
			if err != nil {
				return nil, err
			}
			classifiers = append(classifiers, built)

		default:
			return nil, fmt.Errorf("invalid classifier kind: must be either '%s' or '%s', kind=%s", KindLLM, KindRules, c.Kind)
		}
	}

	if len(classifiers) == 1 {
		return classifiers[0], nil
	}
	return mask.NewMulti(classifiers...), nil
}

func mapConverter(cfg *Converter, l hclog.Logger) (mask.Converter, error) {
	if cfg == nil {
		return nil, nil
	}
	timeout, err := mapTimeout(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return convert.NewOffice(convert.Config{
		Command: cfg.Command,
		Timeout: timeout,
		Logger:  l.Named("convert"),
	})
}

func mapTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse timeout, timeout=%s: %w", s, err)
	}
	return d, nil
}
