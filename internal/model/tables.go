package model

// Tables AutoMigrate 需要建的全部表
func Tables() []interface{} {
	return []interface{}{
		&EventGroup{},
		&ManagedChannel{},
		&ChannelNumberingSettings{},
		&LifecycleSettings{},
		&ExceptionKeyword{},
		&SortPriority{},
		&GenerationRun{},
	}
}
