package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config defines the application level configuration.
type Config struct {
	Email struct {
		Server        string   `json:"server"`         // IMAP server address, host:port
		Username      string   `json:"username"`       // mailbox user
		Password      string   `json:"password"`       // mailbox password
		TargetSubject string   `json:"target_subject"` // subject line that marks a data delivery
		CheckInterval Duration `json:"check_interval"` // how often to poll for new mail
	} `json:"email"`

	DataDir    string `json:"data_dir"`    // directory scanned for flight data files
	InputGlob  string `json:"input_glob"`  // file pattern inside DataDir
	Encoding   string `json:"encoding"`    // input charset: utf-8, gbk, gb18030, latin1
	SheetName  string `json:"sheet_name"`  // worksheet used when reading xlsx input
	OutputDir  string `json:"output_dir"`  // charts and exports land here
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`

	Chart struct {
		WidthInches  float64 `json:"width_inches"`
		HeightInches float64 `json:"height_inches"`
		DPI          int     `json:"dpi"`
	} `json:"chart"`

	Watch struct {
		Interval Duration `json:"interval"` // periodic rescan cadence in watch mode
	} `json:"watch"`

	SendEmail struct {
		Server     string   `json:"server"`     // SMTP server address, host:port
		Username   string   `json:"username"`   // sender account
		Password   string   `json:"password"`   // sender password
		Recipients []string `json:"recipients"` // report recipients
		Subject    string   `json:"subject"`    // subject line for outgoing reports
	} `json:"send_email"`
}

// DataConfig carries the data driven mappings that vary per dataset
// without a rebuild: header aliases, airline display names, the raw
// values that mean a flight was cancelled, and numeric thresholds.
type DataConfig struct {
	Columns     map[string]string `json:"columns"`      // source header -> canonical field
	Airlines    map[string]string `json:"airlines"`     // carrier code -> display name
	CancelCodes []string          `json:"cancel_codes"` // raw cell values treated as cancelled
	Thresholds  map[string]int    `json:"thresholds"`   // named numeric knobs, e.g. moderate_delay
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// LoadConfig reads both configuration files below jsonFolder exactly once
// for the lifetime of the process.
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config file: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading data config file: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("parsing Config: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("parsing DataConfig: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("some configuration did not load")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "configuration loading hit multiple errors:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{
		DataDir:    "data",
		InputGlob:  "*.csv",
		Encoding:   "utf-8",
		SheetName:  "Sheet1",
		OutputDir:  "output",
		LogName:    "app.log",
		LogMaxSize: "10 * 1024 * 1024",
	}
	cfg.Chart.WidthInches = 10
	cfg.Chart.HeightInches = 6
	cfg.Chart.DPI = 150
	cfg.Watch.Interval = Duration(30 * time.Second)
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	return cfg
}

// DefaultData returns the dataset mappings used when no data config file
// is present. Column names already matching the canonical schema need no
// entry in Columns.
func DefaultData() *DataConfig {
	return &DataConfig{
		Columns:  map[string]string{},
		Airlines: map[string]string{},
		CancelCodes: []string{
			"CNCL", "CANCELLED", "CANCELED", "1", "TRUE", "YES",
		},
		Thresholds: map[string]int{
			"moderate_delay": 30,
		},
	}
}

// Duration is a wrapper around time.Duration that supports
// JSON encoding and decoding of strings like "5m30s".
type Duration time.Duration

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) GetColumn(source string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Columns[source]
}

func (dc *DataConfig) SetColumn(source, canonical string) {
	mu.Lock()
	defer mu.Unlock()
	dc.Columns[source] = canonical
}

// GetThreshold returns the named threshold, or fallback when the
// data config does not define it.
func (dc *DataConfig) GetThreshold(name string, fallback int) int {
	mu.RLock()
	defer mu.RUnlock()
	if v, ok := dc.Thresholds[name]; ok {
		return v
	}
	return fallback
}

func (dc *DataConfig) SetThreshold(name string, value int) {
	mu.Lock()
	defer mu.Unlock()
	dc.Thresholds[name] = value
}

// AirlineName resolves a carrier code to its display name, falling back
// to the code itself for carriers the mapping does not know.
func (dc *DataConfig) AirlineName(code string) string {
	mu.RLock()
	defer mu.RUnlock()
	if name, ok := dc.Airlines[code]; ok && name != "" {
		return name
	}
	return code
}

// IsCancelCode reports whether raw marks a cancelled flight.
func (dc *DataConfig) IsCancelCode(raw string) bool {
	mu.RLock()
	defer mu.RUnlock()
	for _, code := range dc.CancelCodes {
		if strings.EqualFold(raw, code) {
			return true
		}
	}
	return false
}
