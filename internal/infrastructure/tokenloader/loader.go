package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kaia_defi/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DeploymentFileLoader reads per-network address overrides from
// <dir>/<network>.json.
type DeploymentFileLoader struct {
	dirPath    string
	loggerInfo func(msg string, args ...any)
	loggerWarn func(msg string, args ...any)
}

// NewDeploymentLoader creates a new DeploymentFileLoader.
func NewDeploymentLoader(dirPath string, loggerInfo, loggerWarn func(msg string, args ...any)) *DeploymentFileLoader {
	return &DeploymentFileLoader{
		dirPath:    dirPath,
		loggerInfo: loggerInfo,
		loggerWarn: loggerWarn,
	}
}

// Load returns every valid deployment file in the directory. A missing
// directory yields no deployments; unreadable or invalid files are skipped.
func (l *DeploymentFileLoader) Load() ([]entity.Deployment, error) {
	files, err := os.ReadDir(l.dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.loggerInfo("Deployment directory not found, using built-in addresses", "path", l.dirPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read deployment directory %s: %w", l.dirPath, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var deployments []entity.Deployment
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}
		filePath := filepath.Join(l.dirPath, file.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			l.loggerWarn("Failed to read deployment file, skipping file.", "path", filePath, "error", err)
			continue
		}

		var d entity.Deployment
		if err := json.Unmarshal(data, &d); err != nil {
			l.loggerWarn("Failed to unmarshal deployment file, skipping file.", "path", filePath, "error", err)
			continue
		}
		if d.ChainID == 0 {
			l.loggerWarn("Deployment file has no chainId, skipping file.", "path", filePath)
			continue
		}

		valid := d.Tokens[:0]
		for _, tok := range d.Tokens {
			if tok.Symbol == "" {
				l.loggerWarn("Token without symbol in deployment file, skipping token.", "path", filePath, "address", tok.Address)
				continue
			}
			if tok.ChainID != 0 && tok.ChainID != d.ChainID {
				l.loggerWarn("Token has mismatched ChainID in file, skipping token.",
					"file", filePath, "token_symbol", tok.Symbol, "token_chain_id", tok.ChainID, "expected_chain_id", d.ChainID)
				continue
			}
			valid = append(valid, tok)
		}
		d.Tokens = valid

		deployments = append(deployments, d)
		l.loggerInfo("Loaded deployment overrides", "file", file.Name(), "chain_id", d.ChainID, "tokens", len(d.Tokens), "protocols", len(d.Protocols))
	}
	return deployments, nil
}
