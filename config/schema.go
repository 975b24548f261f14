package config

// ParamFlags carries the two optional schema attributes
// ConfigurationSchema.cc attaches to a parameter: ReadOnly blocks
// Config.Set, Security marks the value as sensitive (auth keys,
// passwords) for log-redaction purposes. Default is the value used
// when a key is absent from the loaded document.
type ParamFlags struct {
	ReadOnly bool
	Security bool
	Default  any
}

// key builds the "category.name" schema lookup key.
func key(category, name string) string {
	return category + "." + name
}

// Schema is the full set of recognized configuration parameters, per
// §6's key list. Categories: common, registry, controller, worker,
// xrootd.
var Schema = map[string]ParamFlags{
	key("common", "request-buf-size-bytes"):    {Default: 131072},
	key("common", "request-retry-interval-sec"): {Default: 1},

	key("registry", "host"):               {Default: "localhost"},
	key("registry", "port"):               {Default: 25081},
	key("registry", "max-listen-conn"):    {Default: 512},
	key("registry", "threads"):            {Default: 4},
	key("registry", "heartbeat-ival-sec"): {Default: 10},

	key("controller", "num-threads"):                    {Default: 4},
	key("controller", "request-timeout-sec"):             {Default: 300},
	key("controller", "job-timeout-sec"):                  {Default: 3600},
	key("controller", "job-heartbeat-sec"):                {Default: 5},
	key("controller", "http-server-threads"):              {Default: 4},
	key("controller", "http-server-port"):                 {Default: 25080},
	key("controller", "priority-ingest"):                  {Default: 2},
	key("controller", "priority-catalog-management"):      {Default: 1},
	key("controller", "priority-health-monitor"):          {Default: 0},
	key("controller", "priority-worker-evict"):            {Default: 3},
	key("controller", "auto-register-workers"):            {Default: false},
	key("controller", "auto-register-czars"):              {Default: false},
	key("controller", "max-repl-level"):                   {Default: 1},

	key("worker", "num-svc-processing-threads"): {Default: 4},
	key("worker", "num-fs-processing-threads"):  {Default: 4},
	key("worker", "fs-buf-size-bytes"):          {Default: 4194304},
	key("worker", "svc-port"):                   {Default: 25000},
	key("worker", "fs-port"):                    {Default: 25001},
	key("worker", "data-tmp-dir"):               {Default: "/tmp/qserv-worker"},
	key("worker", "ingest-num-retries"):         {Default: 3},
	key("worker", "ingest-max-retries"):         {Default: 10},
	key("worker", "loader-max-warnings"):        {Default: 64},
	key("worker", "create-databases-on-scan"):   {Default: false},

	key("xrootd", "auto-notify"):          {Default: true},
	key("xrootd", "request-timeout-sec"):  {Default: 300},
	key("xrootd", "allow-reconnect"):      {Default: true},
	key("xrootd", "reconnect-timeout"):    {Default: 2},

	// authKey and adminAuthKey are the security-context parameters the
	// registry strips before merge (§4.6); they are recognized here so
	// a deployment can still provision them through the same config
	// surface the rest of the cluster uses.
	key("registry", "authKey"):      {Security: true, Default: ""},
	key("registry", "adminAuthKey"): {Security: true, Default: ""},
	key("registry", "instance-id"):  {Default: ""},
}
