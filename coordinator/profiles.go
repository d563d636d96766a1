package coordinator

import "nmapcluster/task"

// DiscoveryParameters is the host discovery sweep: ARP, ICMP echo, timestamp
// and netmask, IGMP and TCP SYN/ACK pings, without a port scan.
var DiscoveryParameters = []string{
	"-PR", "-PE", "-PP", "-PM", "-PO2",
	"-PS21,22,23,25,80,110,113,135,137,143,443,445,691,993,995,1433,1521,2483,2484,3306,8008,8080,8443,7680,31339",
	"-PA80,113,443,10042",
	"-sn",
}

// Profile is a port scan run against every newly discovered host.
type Profile struct {
	Queue      task.Queue
	Kind       task.Kind
	Parameters []string
}

// FollowUps are enqueued once per discovered host, in this order.
var FollowUps = []Profile{
	{Queue: task.QueueFast, Kind: task.KindTCP, Parameters: []string{"-sS", "-sV"}},
	{Queue: task.QueueMedium, Kind: task.KindTCP, Parameters: []string{"-p-", "-sS", "-sC", "-sV"}},
	{Queue: task.QueueMedium, Kind: task.KindSCTP, Parameters: []string{"-p-", "-sY", "-sC", "-sV"}},
	{Queue: task.QueueSlow, Kind: task.KindUDP, Parameters: []string{"-sU", "-sC", "-sV", "--top-ports", "96"}},
}
