package config

import (
	"time"
)

type ServiceConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

type AppConfig struct {
	Title             string `mapstructure:"title" yaml:"title" validate:"required"`
	HomeURL           string `mapstructure:"home_url" yaml:"home_url" validate:"omitempty,url"`
	HomeTitle         string `mapstructure:"home_title" yaml:"home_title"`
	NavTitle          string `mapstructure:"nav_title" yaml:"nav_title"`
	GoogleAnalyticsID string `mapstructure:"google_analytics_id" yaml:"google_analytics_id"`
}

type ZoteroConfig struct {
	APIKey      string `mapstructure:"api_key" yaml:"api_key" validate:"required"`
	LibraryID   string `mapstructure:"library_id" yaml:"library_id" validate:"required"`
	LibraryType string `mapstructure:"library_type" yaml:"library_type" validate:"required,oneof=user group"`
	Locale      string `mapstructure:"locale" yaml:"locale" validate:"required"`
	CSLStyle    string `mapstructure:"csl_style" yaml:"csl_style" validate:"required"`
	BatchSize   int    `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1,lte=100"`
	ConnTimeout string `mapstructure:"conn_timeout" yaml:"conn_timeout"`
	ReadTimeout string `mapstructure:"read_timeout" yaml:"read_timeout"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	// development only: restrict the sync to a range of items
	Start int `mapstructure:"start" yaml:"start" validate:"gte=0"`
	End   int `mapstructure:"end" yaml:"end" validate:"gte=0"`
}

type ComposerConfig struct {
	Language             string   `mapstructure:"language" yaml:"language" validate:"required"`
	ExcludeDefaultFields []string `mapstructure:"exclude_default_fields" yaml:"exclude_default_fields"`
	ExcludeDefaultFacets []string `mapstructure:"exclude_default_facets" yaml:"exclude_default_facets"`
	ExcludeDefaultSorts  []string `mapstructure:"exclude_default_sorts" yaml:"exclude_default_sorts"`
	ExcludeDefaultBadges []string `mapstructure:"exclude_default_badges" yaml:"exclude_default_badges"`
	ChildIncludeRE       string   `mapstructure:"child_include_re" yaml:"child_include_re"`
	ChildExcludeRE       string   `mapstructure:"child_exclude_re" yaml:"child_exclude_re"`
}

type SearchConfig struct {
	PageLen    int `mapstructure:"page_len" yaml:"page_len" validate:"gte=1"`
	MaxPageLen int `mapstructure:"max_page_len" yaml:"max_page_len" validate:"gtefield=PageLen"`
}

type SolrConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Core        string `mapstructure:"core" yaml:"core"`
	Handler     string `mapstructure:"handler" yaml:"handler"`
	ConnTimeout string `mapstructure:"conn_timeout" yaml:"conn_timeout"`
	ReadTimeout string `mapstructure:"read_timeout" yaml:"read_timeout"`
	QF          string `mapstructure:"qf" yaml:"qf"`
}

type IndexConfig struct {
	Type            string        `mapstructure:"type" yaml:"type" validate:"oneof=memory solr"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	Solr            SolrConfig    `mapstructure:"solr" yaml:"solr"`
}

type LoggingConfig struct {
	Handler string `mapstructure:"handler" yaml:"handler" validate:"oneof=default syslog"`
	Address string `mapstructure:"address" yaml:"address"`
	Level   string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warning error fatal panic"`
	Format  string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

type AssetsConfig struct {
	Debug     bool   `mapstructure:"debug" yaml:"debug"`
	AutoBuild bool   `mapstructure:"auto_build" yaml:"auto_build"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
}

// Config is the merged application configuration.
type Config struct {
	SecretKey string         `mapstructure:"secret_key" yaml:"secret_key" validate:"required"`
	Debug     bool           `mapstructure:"debug" yaml:"debug"`
	DataDir   string         `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	Service   ServiceConfig  `mapstructure:"service" yaml:"service"`
	App       AppConfig      `mapstructure:"app" yaml:"app"`
	Zotero    ZoteroConfig   `mapstructure:"zotero" yaml:"zotero"`
	Composer  ComposerConfig `mapstructure:"composer" yaml:"composer"`
	Search    SearchConfig   `mapstructure:"search" yaml:"search"`
	Index     IndexConfig    `mapstructure:"index" yaml:"index"`
	Logging   LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Assets    AssetsConfig   `mapstructure:"assets" yaml:"assets"`
}

const masked = "********"

// Redacted returns a copy safe for display.
func (c Config) Redacted() Config {
	if c.SecretKey != "" {
		c.SecretKey = masked
	}

	if c.Zotero.APIKey != "" {
		c.Zotero.APIKey = masked
	}

	return c
}
