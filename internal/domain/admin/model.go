package admin

// Statistics is the body of GET /api/admin/statistics.
type Statistics struct {
	TotalUsers        int `json:"totalUsers"`
	TotalPatients     int `json:"totalPatients"`
	TotalDoctors      int `json:"totalDoctors"`
	TotalAdmins       int `json:"totalAdmins"`
	VerifiedDoctors   int `json:"verifiedDoctors"`
	UnverifiedDoctors int `json:"unverifiedDoctors"`
	TotalDocuments    int `json:"totalDocuments"`
	ActiveShares      int `json:"activeShares"`
}
