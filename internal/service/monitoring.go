package service

import "dataglove"

type MonitoringService struct {
	poses PoseReader
}

func NewMonitoringService(poses PoseReader) *MonitoringService {
	return &MonitoringService{poses: poses}
}

// GetCurrentPose returns a consistent copy of the hand pose. Before any angle data it is
// dataglove.DefaultPose.
func (s *MonitoringService) GetCurrentPose() dataglove.HandPose {
	return s.poses.Snapshot()
}
