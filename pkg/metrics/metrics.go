// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// relayNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	relayNamespace = "interviewer"

	// 以下为当前使用的通用标签名。
	eventKindLabelName = "event"
)

var (
	// fanoutBuckets 为广播扇出规模直方图的桶划分（单次广播的接收方数量）。
	fanoutBuckets = prometheus.ExponentialBuckets(1, 2, 10)

	// ActiveConnections 为当前保持的 WebSocket 连接数。
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: relayNamespace,
			Name:      "active_connections",
			Help:      "number of currently open websocket connections",
		})

	// RegisteredSessions 为会话注册表中的会话条目数（含空会话，条目不会被删除）。
	RegisteredSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: relayNamespace,
			Name:      "registered_sessions",
			Help:      "number of session entries in the registry, empty ones included",
		})

	// SessionMembers 为所有会话中的成员总数。
	SessionMembers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: relayNamespace,
			Name:      "session_members",
			Help:      "total number of members across all sessions",
		})

	// EventsRelayed 为按事件类型统计的投递事件计数。
	EventsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: relayNamespace,
			Name:      "events_relayed_total",
			Help:      "number of events enqueued for delivery, by event kind",
		}, []string{eventKindLabelName})

	// EventsDropped 为因接收方邮箱已关闭而丢弃的事件计数。
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: relayNamespace,
			Name:      "events_dropped_total",
			Help:      "number of events dropped because the recipient mailbox was closed",
		})

	// BroadcastFanout 为单次广播的接收方数量分布。
	BroadcastFanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: relayNamespace,
			Name:      "broadcast_fanout",
			Help:      "distribution of recipients per broadcast",
			Buckets:   fanoutBuckets,
		})
)

var metricRegisterer prometheus.Registerer

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(ActiveConnections)
	r.MustRegister(RegisteredSessions)
	r.MustRegister(SessionMembers)
	r.MustRegister(EventsRelayed)
	r.MustRegister(EventsDropped)
	r.MustRegister(BroadcastFanout)
	metricRegisterer = r
}

// GetRegisterer 返回当前生效的 Registerer。
// 未显式注册时退回到 prometheus 的默认 Registerer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer != nil {
		return metricRegisterer
	}
	return prometheus.DefaultRegisterer
}

// GetGatherer 返回与当前 Registerer 配套的 Gatherer，供指标端点拉取。
func GetGatherer() prometheus.Gatherer {
	if g, ok := metricRegisterer.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}
