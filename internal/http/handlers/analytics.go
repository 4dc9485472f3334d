package handlers

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

type analyticsKPIs struct {
	AvgResolutionTime   int `json:"avg_resolution_time"`
	TodayVolume         int `json:"today_volume"`
	VolumeChange        int `json:"volume_change"`
	ResourceUtilization int `json:"resource_utilization"`
	CompletionRate      int `json:"completion_rate"`
	HighPriorityRate    int `json:"high_priority_rate"`
	TotalAllocations    int `json:"total_allocations"`
}

type dailyTrendEntry struct {
	Date      string `json:"date"`
	Count     int    `json:"count"`
	Completed int    `json:"completed"`
}

type cityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

type hourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type analyticsReport struct {
	DailyTrend         []dailyTrendEntry `json:"daily_trend"`
	ByService          map[string]int    `json:"by_service"`
	ByCity             []cityCount       `json:"by_city"`
	ByUrgency          map[string]int    `json:"by_urgency"`
	HourlyDistribution []hourCount       `json:"hourly_distribution"`
	KPIs               analyticsKPIs     `json:"kpis"`
}

// @Summary Allocation analytics
// @Description KPIs, 7-day daily trend, and service/city/urgency/hour distributions
// @Tags analytics
// @Produce json
// @Success 200 {object} analyticsReport
// @Router /api/analytics [get]
func (h *Handler) Analytics(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	all, err := h.Store.AssignmentsSince(ctx, time.Time{})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load assignments", err.Error())
		return
	}
	requests, err := h.Store.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list requests", err.Error())
		return
	}
	resources, err := h.Store.ListResources(ctx, "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list resources", err.Error())
		return
	}
	loads, err := h.Store.ResourceLoads(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load utilization", err.Error())
		return
	}

	requestByID := make(map[string]models.ServiceRequest, len(requests))
	for _, r := range requests {
		requestByID[r.ID] = r
	}
	cityByResource := make(map[string]string, len(resources))
	for _, r := range resources {
		cityByResource[r.ID] = r.City
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	sevenDaysAgo := today.AddDate(0, 0, -7)
	dayAgo := now.Add(-24 * time.Hour)

	report := analyticsReport{
		ByService: map[string]int{},
		ByUrgency: map[string]int{
			models.UrgencyHigh:   0,
			models.UrgencyMedium: 0,
			models.UrgencyLow:    0,
		},
	}

	trendIndex := map[string]int{}
	for i := 6; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		trendIndex[date] = len(report.DailyTrend)
		report.DailyTrend = append(report.DailyTrend, dailyTrendEntry{Date: date})
	}

	var (
		todayVolume, yesterdayVolume int
		resolutionSum                float64
		resolutionCount              int
		last7, last7Completed        int
		last7HighPriority            int
	)
	cityCounts := map[string]int{}
	hourly := make([]int, 24)

	for _, a := range all {
		if !a.AssignedAt.Before(today) {
			todayVolume++
		} else if !a.AssignedAt.Before(yesterday) {
			yesterdayVolume++
		}
		if a.CompletedAt != nil {
			resolutionSum += a.CompletedAt.Sub(a.AssignedAt).Seconds()
			resolutionCount++
		}
		if !a.AssignedAt.Before(dayAgo) {
			hourly[a.AssignedAt.Hour()]++
		}
		if a.AssignedAt.Before(sevenDaysAgo) {
			continue
		}

		last7++
		if a.Status == models.AssignmentCompleted {
			last7Completed++
		}
		req := requestByID[a.RequestID]
		if req.UrgencyLevel == models.UrgencyHigh {
			last7HighPriority++
		}
		report.ByUrgency[req.UrgencyLevel]++
		if req.ServiceCategory != "" {
			report.ByService[req.ServiceCategory]++
		}
		if city := cityByResource[a.ResourceID]; city != "" {
			cityCounts[city]++
		}
		if idx, ok := trendIndex[a.AssignedAt.Format("2006-01-02")]; ok {
			report.DailyTrend[idx].Count++
			if a.Status == models.AssignmentCompleted {
				report.DailyTrend[idx].Completed++
			}
		}
	}

	report.ByCity = make([]cityCount, 0, len(cityCounts))
	for city, count := range cityCounts {
		report.ByCity = append(report.ByCity, cityCount{City: city, Count: count})
	}
	sort.Slice(report.ByCity, func(i, j int) bool {
		if report.ByCity[i].Count == report.ByCity[j].Count {
			return report.ByCity[i].City < report.ByCity[j].City
		}
		return report.ByCity[i].Count > report.ByCity[j].Count
	})

	report.HourlyDistribution = make([]hourCount, 24)
	for hr := range hourly {
		report.HourlyDistribution[hr] = hourCount{Hour: hr, Count: hourly[hr]}
	}

	totalCapacity, usedCapacity := 0, 0
	for _, r := range resources {
		totalCapacity += r.Capacity
		usedCapacity += loads[r.ID]
	}

	kpis := analyticsKPIs{
		TodayVolume:      todayVolume,
		TotalAllocations: len(all),
	}
	if resolutionCount > 0 {
		kpis.AvgResolutionTime = int(math.Round(resolutionSum / float64(resolutionCount)))
	}
	if totalCapacity > 0 {
		kpis.ResourceUtilization = roundPct(usedCapacity, totalCapacity)
	}
	if last7 > 0 {
		kpis.CompletionRate = roundPct(last7Completed, last7)
		kpis.HighPriorityRate = roundPct(last7HighPriority, last7)
	}
	switch {
	case yesterdayVolume > 0:
		kpis.VolumeChange = int(math.Round(float64(todayVolume-yesterdayVolume) / float64(yesterdayVolume) * 100))
	case todayVolume > 0:
		kpis.VolumeChange = 100
	}
	report.KPIs = kpis

	c.JSON(http.StatusOK, report)
}

func roundPct(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}
