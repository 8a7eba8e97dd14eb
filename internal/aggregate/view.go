// Package aggregate turns the cached records of a window into the deal view
// served to clients.
package aggregate

// DealView is the apartment-level summary of one region window.
type DealView struct {
	RegionCode string    `json:"lawdCd"`
	AptName    string    `json:"aptName"`
	Dong       string    `json:"dong"`
	BuildYear  string    `json:"buildYear"`
	Trade      TradeView `json:"trade"`
	Rent       RentView  `json:"rent"`

	// Buckets that could not be refreshed; their months may be out of date.
	Incomplete []string `json:"incompleteBuckets,omitempty"`
}

type TradeView struct {
	TotalCount     int            `json:"totalCount"`
	MonthlySummary []TradeMonthly `json:"monthlySummary"`
	Items          []TradeItem    `json:"items"`
}

type TradeMonthly struct {
	YearMonth string `json:"yearMonth"`
	Count     int    `json:"count"`
	AvgAmount *int64 `json:"avgAmount"`
}

type TradeItem struct {
	AptName        string `json:"aptName"`
	Floor          string `json:"floor"`
	Area           string `json:"area"`
	DealAmount     *int64 `json:"dealAmount"`
	DealDate       string `json:"dealDate"`
	Dong           string `json:"dong"`
	AptDong        string `json:"aptDong"`
	DealingType    string `json:"dealingGbn"`
	CancelType     string `json:"cdealType"`
	CancelDate     string `json:"cdealDay"`
	BrokerRegion   string `json:"estateAgentSggNm"`
	RegisteredDate string `json:"rgstDate"`
	SellerType     string `json:"slerGbn"`
	BuyerType      string `json:"buyerGbn"`
	LandLeasehold  string `json:"landLeaseholdGbn"`
}

type RentView struct {
	TotalCount     int           `json:"totalCount"`
	JeonseCount    int           `json:"jeonseCount"`
	WolseCount     int           `json:"wolseCount"`
	MonthlySummary []RentMonthly `json:"monthlySummary"`
	Items          []RentItem    `json:"items"`
}

type RentMonthly struct {
	YearMonth        string `json:"yearMonth"`
	JeonseCount      int    `json:"jeonseCount"`
	JeonseAvgDeposit *int64 `json:"jeonseAvgDeposit"`
	WolseCount       int    `json:"wolseCount"`
	WolseAvgDeposit  *int64 `json:"wolseAvgDeposit"`
	WolseAvgMonthly  *int64 `json:"wolseAvgMonthly"`
}

type RentItem struct {
	AptName          string `json:"aptName"`
	Floor            string `json:"floor"`
	Area             string `json:"area"`
	RentType         string `json:"rentType"`
	Deposit          *int64 `json:"deposit"`
	MonthlyRent      *int64 `json:"monthlyRent"`
	DealDate         string `json:"dealDate"`
	ContractType     string `json:"contractType"`
	RenewalRightUsed string `json:"useRRRight"`
}
