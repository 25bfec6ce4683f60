package lsnmodels

// Settings is the process-wide display document kept in settings.json
type Settings struct {
	Timezone          string                 `json:"timezone"`
	RefreshInterval   int                    `json:"refresh_interval"`
	TemperatureUnit   string                 `json:"temperature_unit"`
	Dashboard         map[string]interface{} `json:"dashboard"`
	DashboardSettings map[string]interface{} `json:"dashboard_settings"`
}

// DashboardFields are the top-level update keys folded into dashboard_settings
var DashboardFields = []string{
	"title", "subtitle", "organization", "primaryColor",
	"showTitle", "showSubtitle", "showOrg", "showRSSI",
	"showBattery", "autoRefresh",
}

// DefaultSettings returns a fresh copy of the factory settings
func DefaultSettings() Settings {
	return Settings{
		Timezone:        "UTC",
		RefreshInterval: 30,
		TemperatureUnit: "F",
		Dashboard: map[string]interface{}{
			"title": "LoRa Sensor Network",
			"theme": "default",
		},
		DashboardSettings: map[string]interface{}{
			"title":        "LoRa Sensor Network",
			"subtitle":     "Environmental Data Dashboard",
			"organization": "",
			"primaryColor": "#3b82f6",
			"showTitle":    true,
			"showSubtitle": true,
			"showOrg":      false,
			"showRSSI":     true,
			"showBattery":  true,
			"autoRefresh":  true,
		},
	}
}

// Clone deep-copies the dashboard maps so callers cannot alias cached state
func (s Settings) Clone() Settings {
	out := s
	out.Dashboard = cloneMap(s.Dashboard)
	out.DashboardSettings = cloneMap(s.DashboardSettings)
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NodeLabel maps a node id to a human location name
type NodeLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NodeLabels is the nodes.json document
type NodeLabels struct {
	Nodes []NodeLabel `json:"nodes"`
}
