package cfg

type Cfg struct {
	// Storage configuration
	DataDir     string
	Environment string

	// Application configuration
	Port            string
	WorkerCount     int
	RefreshInterval int
	FetchTimeout    int
	SyncEndpoint    string
	FaviconTemplate string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}

// StoreDirName returns the name of the on-disk data directory. Development
// and production installs use distinct names so they never share state.
func (c *Cfg) StoreDirName() string {
	if c.Environment == "development" {
		return ".quillfeed-dev"
	}
	return ".quillfeed"
}
