package main

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/golang/glog"
)

const statsviewURL = "/debug/statsview"

// launchStatsview serves live runtime charts (heap, goroutines, GC) on
// addr from a background goroutine.
func launchStatsview(addr string) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()
	glog.Infof("stats server available at http://%s%s", addr, statsviewURL)
}
