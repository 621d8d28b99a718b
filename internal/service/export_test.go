package service

var TodayBounds = todayBounds
