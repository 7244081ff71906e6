package config

// Defaults is the base layer every other layer overrides.
func Defaults() map[string]any {
	return map[string]any{
		"debug":    false,
		"data_dir": "data",
		"service": map[string]any{
			"host": "",
			"port": "8080",
		},
		"app": map[string]any{
			"title":      "Kerko App",
			"home_title": "Home",
			"nav_title":  "Library",
		},
		"zotero": map[string]any{
			"library_type": "group",
			"locale":       "en-GB",
			"csl_style":    "apa",
			"batch_size":   100,
			"conn_timeout": "5",
			"read_timeout": "30",
			"base_url":     "https://api.zotero.org",
		},
		"composer": map[string]any{
			"language":               "en",
			"exclude_default_facets": []any{"facet_tag", "facet_link"},
			"child_include_re":       "^publishPDF$",
		},
		"search": map[string]any{
			"page_len":     20,
			"max_page_len": 100,
		},
		"index": map[string]any{
			"type":             "memory",
			"refresh_interval": "1m",
			"solr": map[string]any{
				"handler":      "select",
				"conn_timeout": "5",
				"read_timeout": "20",
				"qf":           "z_title_txt^3 z_creator_txt^2 z_all_txt",
			},
		},
		"logging": map[string]any{
			"handler": "default",
			"level":   "info",
			"format":  "text",
		},
		"assets": map[string]any{
			"debug":      false,
			"auto_build": true,
			"static_dir": "static",
		},
	}
}

// Development is layered on top when debug is set.
func Development() map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level": "debug",
		},
		"assets": map[string]any{
			"debug": true,
		},
	}
}

// Production is layered on top when debug is not set.
func Production() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"google_analytics_id": "UA-149862882-2",
		},
		"logging": map[string]any{
			"handler": "syslog",
			"address": "/dev/log",
			"level":   "warning",
		},
		"assets": map[string]any{
			"debug":      false,
			"auto_build": false,
		},
	}
}
