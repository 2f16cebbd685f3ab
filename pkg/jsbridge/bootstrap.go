package jsbridge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

// BundleScriptName is the bootstrap file looked up in a resource bundle.
const BundleScriptName = "WebViewJavascriptBridge.js"

//go:embed bootstrap.js
var embeddedBootstrap string

type bootstrapConfig struct {
	Scheme         string `json:"scheme"`
	PathPrefix     string `json:"pathPrefix"`
	MessageHandler string `json:"messageHandler"`
	FailSoft       bool   `json:"failSoft"`
}

func loadBootstrap(bundle fs.FS) (string, error) {
	if bundle == nil {
		return embeddedBootstrap, nil
	}
	data, err := fs.ReadFile(bundle, BundleScriptName)
	if err != nil {
		return "", fmt.Errorf("read bootstrap from bundle: %w", err)
	}
	return string(data), nil
}

// renderBootstrap prefixes the script with its configuration object.
func renderBootstrap(source string, cfg bootstrapConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode bootstrap config: %w", err)
	}
	return fmt.Sprintf("window.__wvjbConfig = %s;\n%s", data, source), nil
}

// EmbeddedBootstrap returns the bootstrap script compiled into the package,
// without configuration. It is the file to ship in a resource bundle.
func EmbeddedBootstrap() string {
	return embeddedBootstrap
}
