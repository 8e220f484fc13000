package domain

import "time"

// MetricAPICalls counts outbound Admin API calls made for a shop
const MetricAPICalls = "api_calls"

// UsageRecord tracks one metered action performed on behalf of a shop
type UsageRecord struct {
	ID          string                 `json:"id"`
	ShopDomain  string                 `json:"shop_domain"`
	MetricName  string                 `json:"metric_name"`
	MetricValue int64                  `json:"metric_value"`
	MetricData  map[string]interface{} `json:"metric_data,omitempty"`
	Date        time.Time              `json:"date"`
}
