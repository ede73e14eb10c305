package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// NodeConfig configures one middleware instance.
type NodeConfig struct {
	BaseConfig `mapstructure:",squash"`
	Instance   InstanceConfig   `mapstructure:"instance"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	RDC        RDCClientConfig  `mapstructure:"rdc"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	Endpoints  []EndpointConfig `mapstructure:"endpoints"`
	Mappings   []MappingConfig  `mapstructure:"mappings"`
}

// InstanceConfig holds the instance-wide flags.
type InstanceConfig struct {
	ID           string `mapstructure:"id"`
	Forceable    bool   `mapstructure:"forceable"`
	Discoverable bool   `mapstructure:"discoverable"`
}

// RDCClientConfig points an instance at its RDC.
type RDCClientConfig struct {
	Addr string `mapstructure:"addr"`
}

// TimeoutsConfig bounds network calls and paces background loops.
type TimeoutsConfig struct {
	Call             time.Duration `mapstructure:"call"`
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
}

// EndpointConfig declares an endpoint created at start-up.
type EndpointConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Polarity    string   `mapstructure:"polarity"`
	Schema      string   `mapstructure:"schema"`
	SchemaFile  string   `mapstructure:"schema_file"`
	Tags        []string `mapstructure:"tags"`
	Exposed     bool     `mapstructure:"exposed"`
	Forceable   bool     `mapstructure:"forceable"`
}

// Details builds the endpoint description, reading SchemaFile relative to
// base when Schema is empty.
func (e EndpointConfig) Details(base BaseConfig) (endpoint.Details, error) {
	pol, err := endpoint.ParsePolarity(e.Polarity)
	if err != nil {
		return endpoint.Details{}, fmt.Errorf("endpoint %q: %w", e.Name, err)
	}
	schema := e.Schema
	if schema == "" && e.SchemaFile != "" {
		data, err := os.ReadFile(base.Path(e.SchemaFile))
		if err != nil {
			return endpoint.Details{}, fmt.Errorf("endpoint %q: %w: %w", e.Name, mwerrors.ErrBadSchema, err)
		}
		schema = string(data)
	}
	d := endpoint.New(e.Name, e.Description, pol, schema, e.Tags...)
	if err := d.Validate(); err != nil {
		return endpoint.Details{}, err
	}
	return d, nil
}

// QueryConfig is the declarative form of a query. A nil Matches means
// unlimited.
type QueryConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	IncludeTags []string `mapstructure:"include_tags"`
	ExcludeTags []string `mapstructure:"exclude_tags"`
	Matches     *int     `mapstructure:"matches"`
	Where       string   `mapstructure:"where"`
}

// Build compiles the query.
func (q QueryConfig) Build() (*query.Query, error) {
	b := query.New().
		Name(q.Name).
		Description(q.Description).
		IncludeTags(q.IncludeTags...).
		ExcludeTags(q.ExcludeTags...).
		Where(q.Where)
	if q.Matches != nil {
		b = b.Matches(*q.Matches)
	}
	return b.Build()
}

// MappingConfig declares a mapping run once the instance is serving.
// An empty Host maps indirectly through the RDC.
type MappingConfig struct {
	Endpoint    string      `mapstructure:"endpoint"`
	Host        string      `mapstructure:"host"`
	Query       QueryConfig `mapstructure:"query"`
	Persistence string      `mapstructure:"persistence"`
}

// Policy parses the persistence policy, defaulting to NONE.
func (m MappingConfig) Policy() (persistence.Policy, error) {
	if m.Persistence == "" {
		return persistence.None, nil
	}
	return persistence.Parse(m.Persistence)
}

// RDCConfig configures the Resource Discovery Center.
type RDCConfig struct {
	BaseConfig `mapstructure:",squash"`
	GRPC       GRPCConfig    `mapstructure:"grpc"`
	Index      IndexConfig   `mapstructure:"index"`
	Storage    BackendConfig `mapstructure:"storage"`
}

// IndexConfig controls announcement expiry.
type IndexConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// BackendConfig names a store backend and its string-map settings.
type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}
