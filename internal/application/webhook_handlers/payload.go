package webhook_handlers

// str returns payload[key] when it is a string
func str(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

// num returns payload[key] when it is a JSON number
func num(payload map[string]interface{}, key string) float64 {
	n, _ := payload[key].(float64)
	return n
}
