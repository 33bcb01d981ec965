package models

// University is a structured row loaded by the file-processing worker from
// uploaded CSV/XLSX/SQL files. The chat worker queries it directly; the
// gateway only truncates it during clear-database.
type University struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	University  string `json:"university"`
	Program     string `json:"program"`
	Tuition     int    `json:"tuition"`
	Location    string `json:"location"`
	VisaService string `json:"visa_service"`
}

// TableName matches the schema the workers share.
func (University) TableName() string { return "universities" }
