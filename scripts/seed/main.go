// Seed pushes the default alert rules and a set of demo inventory
// snapshots into a running LabWatch instance. Rules whose name already
// exists on the server are skipped, so the script is safe to re-run and
// is a no-op for rules in memory mode, where they are seeded at boot.
//
// Usage: go run ./scripts/seed [-addr http://localhost:5002]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"
)

func demoSnapshots() []map[string]interface{} {
	expiry := time.Now().UTC().AddDate(0, 0, 20).Format(time.RFC3339)

	return []map[string]interface{}{
		{
			"item_id":             "item-1",
			"item_name":           "DMEM Culture Media",
			"category":            "MEDIA",
			"current_stock":       750.0,
			"min_level":           1000.0,
			"max_level":           5000.0,
			"reorder_point":       1500.0,
			"safety_stock":        500.0,
			"average_consumption": 120.0,
			"lead_time_days":      7.0,
			"expiry_date":         expiry,
		},
		{
			"item_id":             "item-2",
			"item_name":           "FSH Hormone",
			"category":            "HORMONE",
			"current_stock":       40.0,
			"min_level":           50.0,
			"max_level":           200.0,
			"reorder_point":       75.0,
			"safety_stock":        25.0,
			"average_consumption": 5.0,
			"lead_time_days":      14.0,
		},
		{
			"item_id":             "item-3",
			"item_name":           "Liquid Nitrogen",
			"category":            "CRYOGENIC",
			"current_stock":       150.0,
			"min_level":           200.0,
			"max_level":           1000.0,
			"reorder_point":       300.0,
			"safety_stock":        50.0,
			"average_consumption": 25.0,
			"lead_time_days":      3.0,
		},
	}
}

func defaultRules() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        "Low Stock Alert",
			"description": "Alert when stock falls below minimum level",
			"type":        "LOW_STOCK",
			"severity":    "medium",
			"conditions": []map[string]interface{}{
				{"field": "currentStock", "operator": "LESS_THAN", "value": "minLevel"},
			},
			"channels": []map[string]interface{}{
				{"type": "IN_APP", "enabled": true},
				{"type": "EMAIL", "enabled": true, "configuration": map[string]string{"recipients": "inventory@lab.local"}},
			},
		},
		{
			"name":        "Critical Stock Alert",
			"description": "Alert when stock is critically low",
			"type":        "CRITICAL_STOCK",
			"severity":    "critical",
			"conditions": []map[string]interface{}{
				{"field": "currentStock", "operator": "LESS_THAN", "value": "safetyStock"},
			},
			"channels": []map[string]interface{}{
				{"type": "IN_APP", "enabled": true},
				{"type": "EMAIL", "enabled": true, "configuration": map[string]string{"recipients": "manager@lab.local"}},
			},
			"escalation": map[string]interface{}{
				"enabled": true,
				"levels": []map[string]interface{}{
					{
						"delay_minutes": 30,
						"recipients":    []string{"director@lab.local"},
						"channels":      []map[string]interface{}{{"type": "EMAIL", "enabled": true}},
					},
				},
			},
		},
		{
			"name":        "Expiry Warning",
			"description": "Alert when items are nearing expiry",
			"type":        "EXPIRY_WARNING",
			"severity":    "high",
			"conditions": []map[string]interface{}{
				{"field": "daysToExpiry", "operator": "LESS_THAN", "value": 30},
			},
			"channels": []map[string]interface{}{
				{"type": "IN_APP", "enabled": true},
			},
		},
	}
}

// existingRuleNames fetches the names of the rules already on the server.
func existingRuleNames(client *http.Client, addr string) map[string]bool {
	names := make(map[string]bool)

	resp, err := client.Get(addr + "/v1/rules")
	if err != nil {
		log.Fatalf("Error listing rules: %s", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Fatalf("Error decoding rule list: %s", err)
	}

	for _, rule := range envelope.Data {
		names[rule.Name] = true
	}
	return names
}

func main() {
	addr := flag.String("addr", "http://localhost:5002", "base URL of the LabWatch service")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	existing := existingRuleNames(client, *addr)
	for _, rule := range defaultRules() {
		name := rule["name"].(string)
		if existing[name] {
			log.Printf("Rule %q already present, skipping", name)
			continue
		}

		body, err := json.Marshal(rule)
		if err != nil {
			log.Fatalf("Error encoding rule: %s", err)
		}

		resp, err := client.Post(*addr+"/v1/rules", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Error posting rule: %s", err)
		}

		if resp.StatusCode >= 300 {
			log.Printf("[%s] Error creating rule %q", resp.Status, name)
		} else {
			log.Printf("[%s] Rule %q created", resp.Status, name)
		}

		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %s", err)
		}
	}

	for _, snapshot := range demoSnapshots() {
		body, err := json.Marshal(snapshot)
		if err != nil {
			log.Fatalf("Error encoding snapshot: %s", err)
		}

		resp, err := client.Post(*addr+"/v1/inventory/metrics", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Error posting snapshot: %s", err)
		}

		if resp.StatusCode >= 300 {
			log.Printf("[%s] Error pushing snapshot %v", resp.Status, snapshot["item_id"])
		} else {
			log.Printf("[%s] Snapshot %v accepted", resp.Status, snapshot["item_id"])
		}

		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %s", err)
		}
	}
}
