package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/icglr-rcm/mindata"
	"github.com/icglr-rcm/mindata/internal"
)

const (
	apiName         = "Rwanda Mineral Data Interoperability Standard API"
	standardVersion = "2.3.0"
	serverVersion   = "1.0.0"

	openapiPath = "api/openapi.yaml"
)

// Server wires the domain services to HTTP routes.
type Server struct {
	cfg                *mindata.Config
	mineSites          *internal.MineSitesService
	exportCertificates *internal.ExportCertificatesService
	lots               *internal.LotsService
	mux                *http.ServeMux
	openapiJSON        []byte
	openapiYAML        []byte
}

// NewServer creates a new Server instance.
func NewServer(cfg *mindata.Config, mineSites *internal.MineSitesService, exportCertificates *internal.ExportCertificatesService, lots *internal.LotsService) *Server {
	return &Server{
		cfg:                cfg,
		mineSites:          mineSites,
		exportCertificates: exportCertificates,
		lots:               lots,
		mux:                http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /mine-sites", s.handleListMineSites)
	s.mux.HandleFunc("POST /mine-sites", s.handleCreateMineSite)
	s.mux.HandleFunc("GET /mine-sites/{icglrId}", s.handleGetMineSite)
	s.mux.HandleFunc("PUT /mine-sites/{icglrId}", s.handleUpdateMineSite)

	s.mux.HandleFunc("GET /export-certificates", s.handleListExportCertificates)
	s.mux.HandleFunc("POST /export-certificates", s.handleCreateExportCertificate)
	s.mux.HandleFunc("GET /export-certificates/{identifier}", s.handleGetExportCertificate)

	s.mux.HandleFunc("GET /lots", s.handleListLots)
	s.mux.HandleFunc("POST /lots", s.handleCreateLot)
	s.mux.HandleFunc("GET /lots/{lotNumber}", s.handleGetLot)

	s.mux.HandleFunc("POST /graphql", s.handleGraphQL)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /openapi.json", s.handleOpenAPIJSON)
	s.mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPIYAML)
	s.mux.HandleFunc("GET /api-docs", s.handleAPIDocs)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
}

// LoadOpenAPISpec reads the OpenAPI document and prepares its JSON form.
func (s *Server) LoadOpenAPISpec(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var spec map[string]any
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return err
	}
	encoded, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	s.openapiYAML = raw
	s.openapiJSON = encoded
	return nil
}

// Start starts the HTTP server on the configured address.
func (s *Server) Start() error {
	zap.S().Infow("starting server", "addr", s.cfg.Server.Addr)
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      withRequestID(s.mux),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return srv.ListenAndServe()
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cfg, err := loadConfig()
	if err != nil {
		sugar.Fatalf("failed to load configuration: %v", err)
	}

	set, err := internal.LoadSchemas(cfg.Schemas.Dir, sugar)
	if err != nil {
		sugar.Fatalf("failed to load schemas: %v", err)
	}

	validator, err := internal.NewValidator(set, sugar)
	if err != nil {
		sugar.Fatalf("failed to compile validators: %v", err)
	}

	store, err := openOrCreateStore(cfg, set, sugar)
	if err != nil {
		sugar.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	server := NewServer(cfg,
		internal.NewMineSitesService(store, validator, sugar),
		internal.NewExportCertificatesService(store, validator, sugar),
		internal.NewLotsService(store, validator, sugar),
	)
	server.RegisterRoutes()

	if err := server.LoadOpenAPISpec(openapiPath); err != nil {
		sugar.Warnw("openapi spec unavailable", "path", openapiPath, "error", err)
	}

	if err := server.Start(); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// openOrCreateStore opens the database, generating and applying the DDL
// first when the database file does not exist yet.
func openOrCreateStore(cfg *mindata.Config, set *internal.SchemaSet, log *zap.SugaredLogger) (*internal.Store, error) {
	if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
		gen, err := internal.NewGenerator(set, log)
		if err != nil {
			return nil, err
		}
		ddl := gen.GenerateSQL()
		if err := writeDDLFile(cfg.Database.DDLPath, ddl); err != nil {
			log.Warnw("failed to write ddl file", "path", cfg.Database.DDLPath, "error", err)
		}
		return internal.RebuildStore(cfg.Database.Path, ddl, log)
	}
	return internal.OpenStore(cfg.Database.Path, log)
}

func writeDDLFile(path, ddl string) error {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(ddl), 0o644)
}

func dirOf(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx > 0 {
		return path[:idx]
	}
	return ""
}

// loadConfig builds the runtime configuration from defaults, an optional
// config file and MINDATA_* environment variables.
func loadConfig() (*mindata.Config, error) {
	v := viper.New()

	defaults := mindata.DefaultConfig()
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("database.ddl_path", defaults.Database.DDLPath)
	v.SetDefault("schemas.dir", defaults.Schemas.Dir)
	v.SetDefault("query.default_page_size", defaults.Query.DefaultPageSize)
	v.SetDefault("query.max_page_size", defaults.Query.MaxPageSize)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetEnvPrefix("MINDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &mindata.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
