package subsystem

import (
	"net/http"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
)

const adminPath = "/admin_cfg"

// AdminFields maps the management interface settings. Related settings are
// grouped under dotted canonical keys.
var AdminFields = mapper.FieldMap{
	{Canonical: "heap_size.min", Wire: "minHeapSize"},
	{Canonical: "heap_size.max", Wire: "maxHeapSize"},
	{Canonical: "session.timeout", Wire: "sessionTimeout"},
	{Canonical: "session.inactive_timeout", Wire: "sessionInactiveTimeout"},
	{Canonical: "session.cache_purge", Wire: "sessionCachePurge"},
	{Canonical: "session.ba_timeout", Wire: "baSessionTimeout"},
	{Canonical: "http_port", Wire: "httpPort"},
	{Canonical: "https_port", Wire: "httpsPort"},
	{Canonical: "sshd_client_alive_interval", Wire: "sshdClientAliveInterval"},
	{Canonical: "swap_file_size", Wire: "swapFileSize"},
	{Canonical: "threads.min", Wire: "minThreads"},
	{Canonical: "threads.max", Wire: "maxThreads"},
	{Canonical: "max_pool_size", Wire: "maxPoolSize"},
	{Canonical: "lmi_debug", Wire: "lmiDebuggingEnabled", Bool: true},
	{Canonical: "console_log_level", Wire: "consoleLogLevel"},
	{Canonical: "client_certs.accept", Wire: "acceptClientCerts", Bool: true},
	{Canonical: "client_certs.validate_identity", Wire: "validateClientCertIdentity", Bool: true},
	{Canonical: "client_certs.exclude_csrf_pattern", Wire: "excludeCsrfChecking"},
	{Canonical: "tls.server_protocol", Wire: "enabledServerProtocols"},
	{Canonical: "tls.enabled_protocol", Wire: "enabledTLS", Kind: mapper.List},
	{Canonical: "files.max", Wire: "maxFiles"},
	{Canonical: "files.max_size", Wire: "maxFileSize"},
	{Canonical: "proxy.http", Wire: "httpProxy"},
	{Canonical: "proxy.https", Wire: "httpsProxy"},
	{Canonical: "login.header", Wire: "loginHeader"},
	{Canonical: "login.message", Wire: "loginMessage"},
	{Canonical: "access_log_format", Wire: "accessLogFormat"},
	{Canonical: "lmi_message_timeout", Wire: "lmiMessageTimeout"},
	{Canonical: "valid_verify_domains", Wire: "validVerifyDomains"},
}

// AdminSettings is the management interface configuration
func AdminSettings() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "admin_settings",
		Description: "Local management interface settings",
		Fields:      AdminFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: adminPath},
		Update:      &reconciler.Endpoint{Method: http.MethodPut, Path: adminPath},
	}
}
