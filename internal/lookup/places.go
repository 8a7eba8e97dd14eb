package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultKakaoBaseURL = "https://dapi.kakao.com"

// Place is one keyword-search hit.
type Place struct {
	Name        string
	Address     string // lot-number address
	RoadAddress string
	Category    string
	Lat         float64
	Lng         float64
}

// PlacesClient searches places around a point with the Kakao local API.
type PlacesClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewPlacesClient(baseURL, apiKey string, httpClient *http.Client) *PlacesClient {
	if baseURL == "" {
		baseURL = DefaultKakaoBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &PlacesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type kakaoResponse struct {
	Documents []struct {
		PlaceName       string `json:"place_name"`
		AddressName     string `json:"address_name"`
		RoadAddressName string `json:"road_address_name"`
		CategoryName    string `json:"category_name"`
		X               string `json:"x"`
		Y               string `json:"y"`
	} `json:"documents"`
}

// Search returns places matching query within radius metres of (lat, lng).
func (c *PlacesClient) Search(ctx context.Context, query string, lat, lng float64, radius int) ([]Place, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radius))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/local/search/keyword?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call places api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places api returned status %d", resp.StatusCode)
	}

	var body kakaoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	places := make([]Place, 0, len(body.Documents))
	for _, d := range body.Documents {
		lat, _ := strconv.ParseFloat(d.Y, 64)
		lng, _ := strconv.ParseFloat(d.X, 64)
		places = append(places, Place{
			Name:        d.PlaceName,
			Address:     d.AddressName,
			RoadAddress: d.RoadAddressName,
			Category:    d.CategoryName,
			Lat:         lat,
			Lng:         lng,
		})
	}
	return places, nil
}
