package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
)

// NodeLabels serves the location names kept in nodes.json.
// The file is re-read when its modification time changes.
type NodeLabels struct {
	path   string
	logger *logger.Logger

	mu      sync.Mutex
	modTime int64
	labels  map[string]string
}

// OpenNodeLabels loads nodes.json from dir, creating an empty document if missing
func OpenNodeLabels(dir string, log *logger.Logger) (*NodeLabels, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Storage(err, "failed to create config directory")
	}

	n := &NodeLabels{
		path:   filepath.Join(dir, NodesFile),
		logger: log.WithComponent("node_labels"),
		labels: map[string]string{},
	}

	if _, err := os.Stat(n.path); errors.Is(err, os.ErrNotExist) {
		if err := writeJSONAtomic(n.path, lsnmodels.NodeLabels{Nodes: []lsnmodels.NodeLabel{}}); err != nil {
			return nil, apperrors.Storage(err, "failed to write node labels")
		}
	}
	n.reload()
	return n, nil
}

// Labels returns node id to location name
func (n *NodeLabels) Labels() map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloadLocked()

	out := make(map[string]string, len(n.labels))
	for k, v := range n.labels {
		out[k] = v
	}
	return out
}

func (n *NodeLabels) reload() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloadLocked()
}

func (n *NodeLabels) reloadLocked() {
	info, err := os.Stat(n.path)
	if err != nil {
		return
	}
	if info.ModTime().UnixNano() == n.modTime {
		return
	}

	data, err := os.ReadFile(n.path)
	if err != nil {
		n.logger.WithError(err).Warn("Failed to read node labels")
		return
	}
	var doc lsnmodels.NodeLabels
	if err := json.Unmarshal(data, &doc); err != nil {
		n.logger.WithError(err).Warn("Node labels file unreadable, keeping previous labels")
		return
	}

	labels := make(map[string]string, len(doc.Nodes))
	for _, node := range doc.Nodes {
		if node.ID != "" {
			labels[node.ID] = node.Name
		}
	}
	n.labels = labels
	n.modTime = info.ModTime().UnixNano()
}
