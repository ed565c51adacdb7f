// Package xmltv 把托管频道的赛事时间表写成 XMLTV 文件
package xmltv

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ChannelSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

const timeLayout = "20060102150405 -0700"

type document struct {
	XMLName    xml.Name    `xml:"tv"`
	Generator  string      `xml:"generator-info-name,attr"`
	Channels   []channel   `xml:"channel"`
	Programmes []programme `xml:"programme"`
}

type channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	LCN         string `xml:"lcn"`
}

type programme struct {
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr"`
	Channel  string   `xml:"channel,attr"`
	Title    string   `xml:"title"`
	Category []string `xml:"category"`
}

// Writer 实现 interfaces.EPGWriter；先写临时文件再 rename，读方不会看到半个文件
type Writer struct {
	path   string
	logger *logrus.Logger
}

func NewWriter(path string, logger *logrus.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Write(ctx context.Context, entries []interfaces.EPGEntry) error {
	if w.path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Render(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建EPG目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".epg-*.xml")
	if err != nil {
		return fmt.Errorf("创建EPG临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("写入EPG失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入EPG失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("替换EPG文件失败: %w", err)
	}
	w.logger.WithFields(logrus.Fields{"path": w.path, "entries": len(entries)}).Info("EPG已写入")
	return nil
}

// Render 生成 XMLTV 文档；条目顺序即频道号顺序
func Render(entries []interfaces.EPGEntry) ([]byte, error) {
	doc := document{Generator: "ChannelSync"}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ChannelID]; !ok {
			seen[e.ChannelID] = struct{}{}
			doc.Channels = append(doc.Channels, channel{
				ID:          e.ChannelID,
				DisplayName: e.ChannelName,
				LCN:         strconv.Itoa(e.Number),
			})
		}
		var cats []string
		for _, c := range []string{e.Sport, e.League} {
			if c != "" {
				cats = append(cats, c)
			}
		}
		doc.Programmes = append(doc.Programmes, programme{
			Start:    e.Start.Format(timeLayout),
			Stop:     stop(e).Format(timeLayout),
			Channel:  e.ChannelID,
			Title:    e.Title,
			Category: cats,
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("生成XMLTV失败: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func stop(e interfaces.EPGEntry) time.Time {
	if e.End.After(e.Start) {
		return e.End
	}
	return e.Start.Add(3 * time.Hour)
}
