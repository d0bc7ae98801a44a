package repo

import (
	"fmt"
	"time"

	"github.com/axiomesh/executordao/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	RepoRoot  string    `mapstructure:"-" toml:"-"`
	Log       Log       `mapstructure:"log" toml:"log"`
	DAO       DAO       `mapstructure:"dao" toml:"dao"`
	Bootstrap Bootstrap `mapstructure:"bootstrap" toml:"bootstrap"`
	Metrics   Metrics   `mapstructure:"metrics" toml:"metrics"`
	Events    Events    `mapstructure:"events" toml:"events"`
	Accounts  []Account `mapstructure:"accounts" toml:"accounts"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type DAO struct {
	Name string `mapstructure:"name" toml:"name"`
	// account name or hex address allowed to construct the dao
	Deployer string `mapstructure:"deployer" toml:"deployer"`
	// height the engine is deployed at
	DeployHeight uint64 `mapstructure:"deploy_height" toml:"deploy_height"`
	Token        Token  `mapstructure:"token" toml:"token"`
}

type Token struct {
	Name     string `mapstructure:"name" toml:"name"`
	Symbol   string `mapstructure:"symbol" toml:"symbol"`
	Decimals uint8  `mapstructure:"decimals" toml:"decimals"`
	URI      string `mapstructure:"uri" toml:"uri"`
}

type Bootstrap struct {
	Proposal string `mapstructure:"proposal" toml:"proposal"`
	// contract names of the extensions enabled at construction
	Extensions      []string     `mapstructure:"extensions" toml:"extensions"`
	EmergencyTeam   []string     `mapstructure:"emergency_team" toml:"emergency_team"`
	ExecutiveTeam   []string     `mapstructure:"executive_team" toml:"executive_team"`
	SignalsRequired uint64       `mapstructure:"signals_required" toml:"signals_required"`
	Allocations     []Allocation `mapstructure:"allocations" toml:"allocations"`
}

type Allocation struct {
	Recipient string `mapstructure:"recipient" toml:"recipient"`
	Amount    uint64 `mapstructure:"amount" toml:"amount"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// Events is the default filter applied when listing the event log.
type Events struct {
	// beginning of the queried range, 0 means the deploy height
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// end of the range, 0 means latest block
	ToBlock uint64 `mapstructure:"to_block" toml:"to_block"`
	// contract names or hex addresses emitting the events
	Addresses []string `mapstructure:"addresses" toml:"addresses"`
	// Examples:
	// {} or nil          matches any topic list
	// {{A}}              matches event type A
	// {{A, B}}           matches event type A or B
	Topics [][]string `mapstructure:"topics" toml:"topics"`
}

type Account struct {
	Name    string `mapstructure:"name" toml:"name"`
	Address string `mapstructure:"address" toml:"address"`
}

func DefaultConfig(repoRoot string) *Config {
	accounts := []Account{{Name: "deployer", Address: defaultAccount("deployer")}}
	for i := 1; i <= 9; i++ {
		name := fmt.Sprintf("wallet_%d", i)
		accounts = append(accounts, Account{Name: name, Address: defaultAccount(name)})
	}

	var allocations []Allocation
	for _, a := range accounts[:9] {
		allocations = append(allocations, Allocation{Recipient: a.Name, Amount: 1000})
	}

	return &Config{
		RepoRoot: repoRoot,
		Log: Log{
			Level:        "info",
			Filename:     "executordao.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		DAO: DAO{
			Name:     core.DefaultName,
			Deployer: "deployer",
			Token: Token{
				Name:     "ExecutorDAO Governance Token",
				Symbol:   "EDG",
				Decimals: 6,
			},
		},
		Bootstrap: Bootstrap{
			Proposal: "edp000-bootstrap",
			Extensions: []string{
				core.GovernanceTokenName,
				core.ProposalVotingName,
				core.ProposalSubmissionName,
				core.EmergencyProposalsName,
				core.EmergencyExecuteName,
			},
			EmergencyTeam:   []string{"wallet_1", "wallet_2"},
			ExecutiveTeam:   []string{"wallet_1", "wallet_2", "wallet_3", "wallet_4"},
			SignalsRequired: 3,
			Allocations:     allocations,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Events: Events{
			FromBlock: 0,
			ToBlock:   0,
			Addresses: []string{},
			Topics:    [][]string{},
		},
		Accounts: accounts,
	}
}

func defaultAccount(name string) string {
	return core.ContractAddress("account/" + name).Hex()
}

// Address resolves an account name, a contract name of a standard extension
// or a hex address.
func (c *Config) Address(ref string) (common.Address, error) {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	for _, a := range c.Accounts {
		if a.Name != ref {
			continue
		}
		if !common.IsHexAddress(a.Address) {
			return common.Address{}, errors.Errorf("account %s has invalid address %q", a.Name, a.Address)
		}
		return common.HexToAddress(a.Address), nil
	}
	for _, name := range standardContracts {
		if name == ref {
			return core.ContractAddress(ref), nil
		}
	}
	return common.Address{}, errors.Errorf("unknown account %q", ref)
}

// AccountName is the reverse of Address for configured accounts.
func (c *Config) AccountName(addr common.Address) (string, bool) {
	for _, a := range c.Accounts {
		if common.IsHexAddress(a.Address) && common.HexToAddress(a.Address) == addr {
			return a.Name, true
		}
	}
	return "", false
}

var standardContracts = []string{
	core.ExecutorName,
	core.GovernanceTokenName,
	core.ProposalVotingName,
	core.ProposalSubmissionName,
	core.EmergencyProposalsName,
	core.EmergencyExecuteName,
}

// Name returns the account or standard contract name of addr, falling back
// to its hex form.
func (c *Config) Name(addr common.Address) string {
	if name, ok := c.AccountName(addr); ok {
		return name
	}
	for _, name := range standardContracts {
		if core.ContractAddress(name) == addr {
			return name
		}
	}
	return addr.Hex()
}

// Check validates references between sections.
func (c *Config) Check() error {
	names := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if names[a.Name] {
			return errors.Errorf("duplicate account %s", a.Name)
		}
		names[a.Name] = true
		if !common.IsHexAddress(a.Address) {
			return errors.Errorf("account %s has invalid address %q", a.Name, a.Address)
		}
	}
	if _, err := c.Address(c.DAO.Deployer); err != nil {
		return errors.Wrap(err, "dao.deployer")
	}
	if c.Bootstrap.Proposal == "" {
		return errors.New("bootstrap.proposal is empty")
	}
	for _, ext := range c.Bootstrap.Extensions {
		if _, err := c.Address(ext); err != nil {
			return errors.Wrap(err, "bootstrap.extensions")
		}
	}
	for _, m := range append(append([]string{}, c.Bootstrap.EmergencyTeam...), c.Bootstrap.ExecutiveTeam...) {
		if _, err := c.Address(m); err != nil {
			return errors.Wrap(err, "bootstrap team")
		}
	}
	for _, a := range c.Bootstrap.Allocations {
		if _, err := c.Address(a.Recipient); err != nil {
			return errors.Wrap(err, "bootstrap.allocations")
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}
