package datagen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML form of a generator configuration:
//
//	inputs: [/eos/ntuples/ttbar, root://eosuser.cern.ch//eos/user/r/rschoefb/wz.root]
//	branches: [met_pt, nJet, jet_pt]
//	n_split: 10
//	strategy: events
//	tree: Events
//	selection: met_pt > 100 && nJet >= 2
type FileConfig struct {
	Inputs    []string `yaml:"inputs" validate:"required,min=1,dive,required"`
	Branches  []string `yaml:"branches" validate:"dive,required"`
	NSplit    int      `yaml:"n_split" validate:"min=-1"`
	Strategy  string   `yaml:"strategy" validate:"omitempty,strategy"`
	Tree      string   `yaml:"tree"`
	Selection string   `yaml:"selection"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("strategy", validStrategy)
	return v
}

func validStrategy(fl validator.FieldLevel) bool {
	_, err := ParseStrategy(fl.Field().String())
	return err == nil
}

// LoadConfigFile reads and validates a YAML generator configuration.
// Unknown keys are rejected.
func LoadConfigFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := validate.Struct(fc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return FileConfig{}, fmt.Errorf("config file %s: field %s failed %q check", path, fe.Namespace(), fe.Tag())
		}
		return FileConfig{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return fc, nil
}

// Config converts the file configuration into a generator Config. A
// non-empty selection is compiled with ExprSelection.
func (f FileConfig) Config() (Config, error) {
	cfg := Config{
		Inputs:   f.Inputs,
		Branches: f.Branches,
		NSplit:   f.NSplit,
		TreeName: f.Tree,
	}
	if f.Strategy != "" {
		s, err := ParseStrategy(f.Strategy)
		if err != nil {
			return Config{}, err
		}
		cfg.Strategy = s
	}
	if f.Selection != "" {
		sel, err := ExprSelection(f.Selection)
		if err != nil {
			return Config{}, err
		}
		cfg.Selection = sel
	}
	return cfg, nil
}
