package model

// DailyReport seeds the daily report sequence. It comes from
// GET /api/reports/daily.
type DailyReport struct {
	Date           string   `json:"date"`
	CompletedTasks int      `json:"completed_tasks"`
	ExpGained      int      `json:"exp_gained"`
	CoinEarned     int      `json:"coin_earned"`
	PartnerName    string   `json:"partner_name"`
	PartnerComment string   `json:"partner_comment"`
	Highlights     []string `json:"highlights"`
}

// CollaborationStep is one agent turn in the collaboration demo.
type CollaborationStep struct {
	Agent  string `json:"agent"`
	Action string `json:"action"`
	Output string `json:"output"`
}

// Collaboration is the successful result of POST /api/demo/collaboration.
type Collaboration struct {
	Steps        []CollaborationStep `json:"steps"`
	FinalArticle string              `json:"final_article"`
}
